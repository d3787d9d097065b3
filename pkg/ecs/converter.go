package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// DataEntity is the serialized form of an entity. Components are keyed by component name.
type DataEntity struct {
	Pid        int64                      `json:"id"`
	Components map[string]json.RawMessage `json:"components,omitempty"`
	Tags       []string                   `json:"tags,omitempty"`
}

// EntityConverter converts between live entities and DataEntity values. Conversions don't emit
// component or tag events.
type EntityConverter struct {
	store *EntityStore
}

func NewEntityConverter(store *EntityStore) *EntityConverter {
	return &EntityConverter{store: store}
}

// EntityToData serializes the components and tags of e.
func (c *EntityConverter) EntityToData(e Entity) (DataEntity, error) {
	node, err := e.node()
	if err != nil {
		return DataEntity{}, err
	}

	arch := node.archetype
	data := DataEntity{Pid: node.pid}
	if len(arch.heaps) > 0 {
		data.Components = make(map[string]json.RawMessage, len(arch.heaps))
	}
	for _, h := range arch.heaps {
		raw, err := h.Write(node.compIndex)
		if err != nil {
			return DataEntity{}, eris.Wrapf(err, "entity %d", e.id)
		}
		data.Components[h.Type().name] = raw
	}
	for _, tt := range arch.TagSchemaTypes() {
		data.Tags = append(data.Tags, tt.name)
	}
	return data, nil
}

// DataToEntity loads data into the entity with the same pid, creating it if needed. The entity ends up
// with exactly the components and tags listed in data.
func (c *EntityConverter) DataToEntity(data DataEntity) (Entity, error) {
	s := c.store

	var components ComponentTypes
	types := make(map[string]*ComponentType, len(data.Components))
	for name := range data.Components {
		ct, ok := s.schema.ComponentTypeByName(name)
		if !ok {
			return Entity{}, eris.Wrapf(ErrUnknownType, "component %q", name)
		}
		components.Add(ct)
		types[name] = ct
	}
	var tags Tags
	for _, name := range data.Tags {
		tt, ok := s.schema.TagTypeByName(name)
		if !ok {
			return Entity{}, eris.Wrapf(ErrUnknownType, "tag %q", name)
		}
		tags.Add(tt)
	}

	e, err := c.entityFor(data.Pid)
	if err != nil {
		return Entity{}, err
	}
	node := &s.nodes[e.id]
	s.moveEntity(node, s.GetArchetype(components, tags))
	for name, raw := range data.Components {
		if err := node.archetype.Heap(types[name]).Read(node.compIndex, raw); err != nil {
			return Entity{}, eris.Wrapf(err, "entity %d", e.id)
		}
	}
	return e, nil
}

func (c *EntityConverter) entityFor(pid int64) (Entity, error) {
	if pid == 0 {
		return c.store.CreateEntity(), nil
	}
	if e, ok := c.store.EntityByPid(pid); ok {
		return e, nil
	}
	return c.store.CreateEntityWithPid(pid)
}

// StoreToData serializes every live entity in id order.
func (c *EntityConverter) StoreToData() ([]DataEntity, error) {
	entities := c.store.Entities()
	out := make([]DataEntity, 0, len(entities))
	for _, e := range entities {
		data, err := c.EntityToData(e)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// DataToStore loads every entity in data.
func (c *EntityConverter) DataToStore(data []DataEntity) error {
	for i := range data {
		if _, err := c.DataToEntity(data[i]); err != nil {
			return eris.Wrapf(err, "data entity %d", i)
		}
	}
	return nil
}

// -------------------------------------------------------------------------------------------------
// Untyped entity access
// -------------------------------------------------------------------------------------------------

// Component returns the entity's component of type ct, boxed.
func (e Entity) Component(ct *ComponentType) (Component, bool) {
	node, err := e.node()
	if err != nil {
		return nil, false
	}
	h := node.archetype.Heap(ct)
	if h == nil {
		return nil, false
	}
	return h.Get(node.compIndex), true
}

// Components returns the entity's components, boxed, in schema-index order.
func (e Entity) Components() []Component {
	node, err := e.node()
	if err != nil {
		return nil
	}
	out := make([]Component, len(node.archetype.heaps))
	for i, h := range node.archetype.heaps {
		out[i] = h.Get(node.compIndex)
	}
	return out
}

// DebugJSON renders the entity as indented JSON.
func (e Entity) DebugJSON() (string, error) {
	if e.store == nil {
		return "", eris.Wrap(ErrEntityNotFound, "null entity")
	}
	data, err := NewEntityConverter(e.store).EntityToData(e)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", eris.Wrapf(err, "failed to encode entity %d", e.id)
	}
	return string(out), nil
}
