package ecs

// entityScripts holds the scripts of one entity. Scripts don't take part in archetype identity and
// are kept in a side table indexed by EntityNode.scriptIndex.
type entityScripts struct {
	id      int
	types   []*ScriptType
	scripts []Script
}

func (es *entityScripts) find(st *ScriptType) int {
	for i, t := range es.types {
		if t == st {
			return i
		}
	}
	return -1
}

// addScript attaches script to node and returns the script it replaced, if any.
func (s *EntityStore) addScript(node *EntityNode, st *ScriptType, script Script) Script {
	if node.scriptIndex == 0 {
		node.scriptIndex = len(s.scripts)
		s.scripts = append(s.scripts, entityScripts{id: node.id})
	}
	es := &s.scripts[node.scriptIndex]
	if i := es.find(st); i >= 0 {
		replaced := es.scripts[i]
		es.scripts[i] = script
		return replaced
	}
	es.types = append(es.types, st)
	es.scripts = append(es.scripts, script)
	return nil
}

func (s *EntityStore) getScript(node *EntityNode, st *ScriptType) Script {
	if node.scriptIndex == 0 {
		return nil
	}
	es := &s.scripts[node.scriptIndex]
	if i := es.find(st); i >= 0 {
		return es.scripts[i]
	}
	return nil
}

// removeScript detaches the script of type st and returns it. The side table entry is dropped once
// the entity has no scripts left.
func (s *EntityStore) removeScript(node *EntityNode, st *ScriptType) Script {
	if node.scriptIndex == 0 {
		return nil
	}
	es := &s.scripts[node.scriptIndex]
	i := es.find(st)
	if i < 0 {
		return nil
	}
	removed := es.scripts[i]
	es.types = append(es.types[:i], es.types[i+1:]...)
	es.scripts = append(es.scripts[:i], es.scripts[i+1:]...)
	if len(es.scripts) == 0 {
		s.removeAllScripts(node)
	}
	return removed
}

// removeAllScripts swap-removes the side table entry of node.
func (s *EntityStore) removeAllScripts(node *EntityNode) {
	index := node.scriptIndex
	last := len(s.scripts) - 1
	if index != last {
		s.scripts[index] = s.scripts[last]
		s.nodes[s.scripts[index].id].scriptIndex = index
	}
	s.scripts[last] = entityScripts{}
	s.scripts = s.scripts[:last]
	node.scriptIndex = 0
}

// AddScript attaches script to the entity, replacing a script of the same type.
func AddScript[T Script](e Entity, script T) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	e.store.addScript(node, ScriptTypeOf[T](e.store.schema), script)
	return nil
}

// GetScript returns the entity's script of type T.
func GetScript[T Script](e Entity) (T, bool) {
	var zero T
	node, err := e.node()
	if err != nil {
		return zero, false
	}
	script, ok := e.store.getScript(node, ScriptTypeOf[T](e.store.schema)).(T)
	if !ok {
		return zero, false
	}
	return script, true
}

// RemoveScript detaches the entity's script of type T. Removing a missing script is a no-op.
func RemoveScript[T Script](e Entity) error {
	node, err := e.node()
	if err != nil {
		return err
	}
	e.store.removeScript(node, ScriptTypeOf[T](e.store.schema))
	return nil
}

// Scripts returns the entity's scripts in the order they were added.
func (e Entity) Scripts() []Script {
	node, err := e.node()
	if err != nil || node.scriptIndex == 0 {
		return nil
	}
	return append([]Script(nil), e.store.scripts[node.scriptIndex].scripts...)
}

// ScriptCount returns the number of entities that have at least one script.
func (s *EntityStore) ScriptCount() int { return len(s.scripts) - 1 }
