package ecs

import (
	"reflect"
	"slices"
)

// ComponentAction says what happened to a component.
type ComponentAction uint8

const (
	ComponentAdded ComponentAction = iota + 1
	ComponentUpdated
	ComponentRemoved
)

func (a ComponentAction) String() string {
	switch a {
	case ComponentAdded:
		return "added"
	case ComponentUpdated:
		return "updated"
	case ComponentRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ComponentChanged is passed to component handlers.
type ComponentChanged struct {
	Entity Entity
	Action ComponentAction
	Type   *ComponentType
}

// TagsChanged is passed to tag handlers.
type TagsChanged struct {
	Entity  Entity
	Tags    Tags
	OldTags Tags
}

// AddedTags returns the tags present now but not before.
func (t TagsChanged) AddedTags() Tags { return t.Tags.Difference(t.OldTags) }

// RemovedTags returns the tags present before but not now.
func (t TagsChanged) RemovedTags() Tags { return t.OldTags.Difference(t.Tags) }

// Signal is passed to signal handlers of type T.
type Signal[T any] struct {
	Entity Entity
	Event  T
}

// handlerList is an ordered list of handlers. Removal replaces the backing slice so an emit that's
// in progress keeps iterating its snapshot.
type handlerList[E any] struct {
	nextKey  uint64
	handlers []keyedHandler[E]
}

type keyedHandler[E any] struct {
	key uint64
	fn  func(E)
}

func (l *handlerList[E]) add(fn func(E)) uint64 {
	l.nextKey++
	l.handlers = append(l.handlers, keyedHandler[E]{key: l.nextKey, fn: fn})
	return l.nextKey
}

func (l *handlerList[E]) remove(key uint64) bool {
	i := slices.IndexFunc(l.handlers, func(h keyedHandler[E]) bool { return h.key == key })
	if i < 0 {
		return false
	}
	l.handlers = slices.Concat(l.handlers[:i], l.handlers[i+1:])
	return true
}

func (l *handlerList[E]) emit(event E) {
	for _, h := range l.handlers {
		h.fn(event)
	}
}

func (l *handlerList[E]) len() int { return len(l.handlers) }

// signalHandlers is the type-erased view of the per-entity handler map of one signal type.
type signalHandlers interface {
	removeEntity(id int)
	count(id int) int
}

type signalHandlerMap[T any] map[int]*handlerList[Signal[T]]

func (m signalHandlerMap[T]) removeEntity(id int) { delete(m, id) }

func (m signalHandlerMap[T]) count(id int) int {
	if l, ok := m[id]; ok {
		return l.len()
	}
	return 0
}

// eventHub holds every handler registered on a store.
type eventHub struct {
	componentAdded   handlerList[ComponentChanged]
	componentRemoved handlerList[ComponentChanged]
	componentChanged handlerList[ComponentChanged]
	tagsChanged      handlerList[TagsChanged]

	entityComponents map[int]*handlerList[ComponentChanged]
	entityTags       map[int]*handlerList[TagsChanged]
	signals          map[reflect.Type]signalHandlers
}

func newEventHub() eventHub {
	return eventHub{
		entityComponents: make(map[int]*handlerList[ComponentChanged]),
		entityTags:       make(map[int]*handlerList[TagsChanged]),
		signals:          make(map[reflect.Type]signalHandlers),
	}
}

func (h *eventHub) removeEntity(id int) {
	delete(h.entityComponents, id)
	delete(h.entityTags, id)
	for _, m := range h.signals {
		m.removeEntity(id)
	}
}

func (h *eventHub) entityHandlerCount(id int) int {
	n := 0
	if l, ok := h.entityComponents[id]; ok {
		n += l.len()
	}
	if l, ok := h.entityTags[id]; ok {
		n += l.len()
	}
	for _, m := range h.signals {
		n += m.count(id)
	}
	return n
}

func (h *eventHub) signalCount(id int) int {
	n := 0
	for _, m := range h.signals {
		n += m.count(id)
	}
	return n
}

// -------------------------------------------------------------------------------------------------
// Store level subscriptions
// -------------------------------------------------------------------------------------------------

// OnComponentAdded subscribes fn to components added to any entity. Call the returned function to
// unsubscribe.
func (s *EntityStore) OnComponentAdded(fn func(ComponentChanged)) func() {
	key := s.events.componentAdded.add(fn)
	return func() { s.events.componentAdded.remove(key) }
}

// OnComponentRemoved subscribes fn to components removed from any entity.
func (s *EntityStore) OnComponentRemoved(fn func(ComponentChanged)) func() {
	key := s.events.componentRemoved.add(fn)
	return func() { s.events.componentRemoved.remove(key) }
}

// OnComponentChanged subscribes fn to every component add, update, and remove.
func (s *EntityStore) OnComponentChanged(fn func(ComponentChanged)) func() {
	key := s.events.componentChanged.add(fn)
	return func() { s.events.componentChanged.remove(key) }
}

// OnTagsChanged subscribes fn to tag changes of any entity.
func (s *EntityStore) OnTagsChanged(fn func(TagsChanged)) func() {
	key := s.events.tagsChanged.add(fn)
	return func() { s.events.tagsChanged.remove(key) }
}

// -------------------------------------------------------------------------------------------------
// Entity level subscriptions
// -------------------------------------------------------------------------------------------------

// AddComponentChangedHandler subscribes fn to component changes of entity id. The handler is dropped
// when the entity is deleted.
func (s *EntityStore) AddComponentChangedHandler(id int, fn func(ComponentChanged)) (func(), error) {
	node, err := s.aliveNode(id)
	if err != nil {
		return nil, err
	}
	list, ok := s.events.entityComponents[id]
	if !ok {
		list = &handlerList[ComponentChanged]{}
		s.events.entityComponents[id] = list
	}
	key := list.add(fn)
	node.events |= hasComponentHandlers

	return func() {
		if !list.remove(key) || list.len() > 0 {
			return
		}
		if s.events.entityComponents[id] == list {
			delete(s.events.entityComponents, id)
			s.nodes[id].events &^= hasComponentHandlers
		}
	}, nil
}

// AddTagsChangedHandler subscribes fn to tag changes of entity id.
func (s *EntityStore) AddTagsChangedHandler(id int, fn func(TagsChanged)) (func(), error) {
	node, err := s.aliveNode(id)
	if err != nil {
		return nil, err
	}
	list, ok := s.events.entityTags[id]
	if !ok {
		list = &handlerList[TagsChanged]{}
		s.events.entityTags[id] = list
	}
	key := list.add(fn)
	node.events |= hasTagHandlers

	return func() {
		if !list.remove(key) || list.len() > 0 {
			return
		}
		if s.events.entityTags[id] == list {
			delete(s.events.entityTags, id)
			s.nodes[id].events &^= hasTagHandlers
		}
	}, nil
}

// AddSignalHandler subscribes fn to signals of type T emitted to the entity.
func AddSignalHandler[T any](e Entity, fn func(Signal[T])) (func(), error) {
	node, err := e.node()
	if err != nil {
		return nil, err
	}
	s := e.store
	handlers := signalMapOf[T](s, true)
	list, ok := handlers[e.id]
	if !ok {
		list = &handlerList[Signal[T]]{}
		handlers[e.id] = list
	}
	key := list.add(fn)
	node.events |= hasSignalHandlers

	id := e.id
	return func() {
		if !list.remove(key) || list.len() > 0 {
			return
		}
		if handlers[id] == list {
			delete(handlers, id)
			if s.events.signalCount(id) == 0 {
				s.nodes[id].events &^= hasSignalHandlers
			}
		}
	}, nil
}

// EmitSignal calls the entity's handlers for T. Emitting to a deleted entity does nothing.
func EmitSignal[T any](e Entity, event T) {
	node, err := e.node()
	if err != nil || node.events&hasSignalHandlers == 0 {
		return
	}
	handlers := signalMapOf[T](e.store, false)
	if list, ok := handlers[e.id]; ok {
		list.emit(Signal[T]{Entity: e, Event: event})
	}
}

func signalMapOf[T any](s *EntityStore, create bool) signalHandlerMap[T] {
	typ := reflect.TypeFor[T]()
	if m, ok := s.events.signals[typ]; ok {
		return m.(signalHandlerMap[T]) //nolint:forcetypeassert // keyed by T
	}
	if !create {
		return nil
	}
	m := make(signalHandlerMap[T])
	s.events.signals[typ] = m
	return m
}

// EntityHandlerCount returns the number of handlers registered for entity id.
func (s *EntityStore) EntityHandlerCount(id int) int {
	return s.events.entityHandlerCount(id)
}

// -------------------------------------------------------------------------------------------------
// Dispatch
// -------------------------------------------------------------------------------------------------

func (s *EntityStore) emitComponentChanged(node *EntityNode, action ComponentAction, ct *ComponentType) {
	ev := &s.events
	hasStore := ev.componentChanged.len() > 0 ||
		(action == ComponentAdded && ev.componentAdded.len() > 0) ||
		(action == ComponentRemoved && ev.componentRemoved.len() > 0)
	if !hasStore && node.events&hasComponentHandlers == 0 {
		return
	}

	id := node.id
	event := ComponentChanged{Entity: Entity{store: s, id: id}, Action: action, Type: ct}
	switch action {
	case ComponentAdded:
		ev.componentAdded.emit(event)
	case ComponentRemoved:
		ev.componentRemoved.emit(event)
	case ComponentUpdated:
	}
	ev.componentChanged.emit(event)

	// Store handlers may have deleted the entity or grown the node table, so look the node up again.
	if s.isAlive(id) && s.nodes[id].events&hasComponentHandlers != 0 {
		if list, ok := ev.entityComponents[id]; ok {
			list.emit(event)
		}
	}
}

func (s *EntityStore) emitTagsChanged(node *EntityNode, tags, old Tags) {
	ev := &s.events
	if ev.tagsChanged.len() == 0 && node.events&hasTagHandlers == 0 {
		return
	}

	id := node.id
	event := TagsChanged{Entity: Entity{store: s, id: id}, Tags: tags, OldTags: old}
	ev.tagsChanged.emit(event)

	if s.isAlive(id) && s.nodes[id].events&hasTagHandlers != 0 {
		if list, ok := ev.entityTags[id]; ok {
			list.emit(event)
		}
	}
}
