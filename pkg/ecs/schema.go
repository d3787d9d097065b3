package ecs

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"
)

const (
	MaxComponentTypes = bitsetSize
	MaxTagTypes       = bitsetSize
	MaxScriptTypes    = bitsetSize
)

// Component is a plain struct stored by value in archetype heaps. Name must be unique among
// components and is used for formatting and serialization.
type Component interface {
	Name() string
}

// Tag is a zero-size marker struct. It carries no data and only participates in archetype identity.
type Tag interface {
	Name() string
}

// Script is a pointer type attached to a single entity. Scripts live outside the archetype heaps.
type Script interface {
	Name() string
}

// Kind is the category of a registered schema type.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindComponent
	KindTag
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindTag:
		return "tag"
	case KindScript:
		return "script"
	case KindUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}

// schemaType is the metadata every registered type shares.
type schemaType struct {
	index int
	name  string
	kind  Kind
	typ   reflect.Type
}

// Index returns the dense, 0-based index of the type within its kind.
func (t *schemaType) Index() int { return t.index }

func (t *schemaType) Name() string { return t.name }
func (t *schemaType) Kind() Kind { return t.kind }
func (t *schemaType) Type() reflect.Type { return t.typ }
func (t *schemaType) String() string { return t.name }

// ComponentType describes a registered component.
type ComponentType struct {
	schemaType
	newHeap     heapFactory
	newCommands commandsFactory
	jsonSchema  []byte
}

// JSONSchema returns the JSON schema generated for the component's Go type.
func (c *ComponentType) JSONSchema() []byte { return c.jsonSchema }

// ValidateAgainstSchema returns ErrSchemaMismatch if the stored schema differs from the schema of the
// component's current Go type.
func (c *ComponentType) ValidateAgainstSchema(stored []byte) error {
	patch, err := jsondiff.CompareJSON(c.jsonSchema, stored)
	if err != nil {
		return eris.Wrapf(err, "failed to compare schema of component %s", c.name)
	}
	if diff := patch.String(); diff != "" {
		return eris.Wrapf(ErrSchemaMismatch, "component %s: %s", c.name, diff)
	}
	return nil
}

// TagType describes a registered tag.
type TagType struct {
	schemaType
}

// ScriptType describes a registered script.
type ScriptType struct {
	schemaType
}

// Schema is the registry of component, tag, and script types. Indices are assigned in registration
// order and never change. A Schema is safe for concurrent use since command buffers resolve types
// on whichever goroutine records into them.
type Schema struct {
	mu sync.RWMutex

	components []*ComponentType
	tags       []*TagType
	scripts    []*ScriptType

	kinds map[reflect.Type]Kind
	index map[reflect.Type]int

	componentNames map[string]*ComponentType
	tagNames       map[string]*TagType
	scriptNames    map[string]*ScriptType
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{
		kinds:          make(map[reflect.Type]Kind),
		index:          make(map[reflect.Type]int),
		componentNames: make(map[string]*ComponentType),
		tagNames:       make(map[string]*TagType),
		scriptNames:    make(map[string]*ScriptType),
	}
}

// RegisterComponent registers T as a component type. Registering the same type again returns the
// existing descriptor.
func RegisterComponent[T Component](s *Schema) (*ComponentType, error) {
	typ := reflect.TypeFor[T]()
	if ct := s.lookupComponent(typ); ct != nil {
		return ct, nil
	}

	if typ.Kind() != reflect.Struct {
		return nil, eris.Wrapf(ErrSchemaConfig, "component %s must be a struct, got %s", typ, typ.Kind())
	}
	var zero T
	name := zero.Name()

	schema, err := jsonschema.ReflectFromType(typ).MarshalJSON()
	if err != nil {
		return nil, eris.Wrapf(err, "component %s must be json serializable", typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindComponent {
		return s.components[idx], nil
	}
	if err := s.checkType(typ, name, KindComponent); err != nil {
		return nil, err
	}
	if _, ok := s.componentNames[name]; ok {
		return nil, eris.Wrapf(ErrSchemaConfig, "component name %q is already registered", name)
	}
	if err := CheckStructIndex(typ, len(s.components), MaxComponentTypes); err != nil {
		return nil, err
	}

	ct := &ComponentType{
		schemaType: schemaType{index: len(s.components), name: name, kind: KindComponent, typ: typ},
		jsonSchema: schema,
	}
	ct.newHeap = newHeapFactory[T](ct)
	ct.newCommands = newCommandsFactory[T](ct)
	s.components = append(s.components, ct)
	s.componentNames[name] = ct
	s.kinds[typ] = KindComponent
	s.index[typ] = ct.index
	return ct, nil
}

// RegisterTag registers T as a tag type. Tags must be zero-size structs.
func RegisterTag[T Tag](s *Schema) (*TagType, error) {
	typ := reflect.TypeFor[T]()
	if tt := s.lookupTag(typ); tt != nil {
		return tt, nil
	}

	if typ.Kind() != reflect.Struct || typ.Size() != 0 {
		return nil, eris.Wrapf(ErrSchemaConfig, "tag %s must be a zero-size struct", typ)
	}
	var zero T
	name := zero.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindTag {
		return s.tags[idx], nil
	}
	if err := s.checkType(typ, name, KindTag); err != nil {
		return nil, err
	}
	if _, ok := s.tagNames[name]; ok {
		return nil, eris.Wrapf(ErrSchemaConfig, "tag name %q is already registered", name)
	}
	if err := CheckStructIndex(typ, len(s.tags), MaxTagTypes); err != nil {
		return nil, err
	}

	tt := &TagType{schemaType{index: len(s.tags), name: name, kind: KindTag, typ: typ}}
	s.tags = append(s.tags, tt)
	s.tagNames[name] = tt
	s.kinds[typ] = KindTag
	s.index[typ] = tt.index
	return tt, nil
}

// RegisterScript registers T as a script type. Scripts must be pointers to structs.
func RegisterScript[T Script](s *Schema) (*ScriptType, error) {
	typ := reflect.TypeFor[T]()
	if st := s.lookupScript(typ); st != nil {
		return st, nil
	}

	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, eris.Wrapf(ErrSchemaConfig, "script %s must be a pointer to a struct", typ)
	}
	name := reflect.New(typ.Elem()).Interface().(Script).Name() //nolint:forcetypeassert // T is a Script

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindScript {
		return s.scripts[idx], nil
	}
	if err := s.checkType(typ, name, KindScript); err != nil {
		return nil, err
	}
	if _, ok := s.scriptNames[name]; ok {
		return nil, eris.Wrapf(ErrSchemaConfig, "script name %q is already registered", name)
	}
	if err := CheckStructIndex(typ, len(s.scripts), MaxScriptTypes); err != nil {
		return nil, err
	}

	st := &ScriptType{schemaType{index: len(s.scripts), name: name, kind: KindScript, typ: typ}}
	s.scripts = append(s.scripts, st)
	s.scriptNames[name] = st
	s.kinds[typ] = KindScript
	s.index[typ] = st.index
	return st, nil
}

// CheckStructIndex returns ErrSchemaCapacity if assigning index to typ would exceed limit.
func CheckStructIndex(typ reflect.Type, index, limit int) error {
	if index >= limit {
		return eris.Wrapf(ErrSchemaCapacity, "cannot register %s: number of types exceeds the limit of %d",
			typ, limit)
	}
	return nil
}

// checkType validates the name and rejects a Go type already registered under another kind. Must be
// called with the write lock held.
func (s *Schema) checkType(typ reflect.Type, name string, kind Kind) error {
	if name == "" {
		return eris.Wrapf(ErrSchemaConfig, "%s %s has an empty name", kind, typ)
	}
	if existing, ok := s.kinds[typ]; ok && existing != kind {
		return eris.Wrapf(ErrSchemaConfig, "%s is already registered as a %s", typ, existing)
	}
	return nil
}

func (s *Schema) lookupComponent(typ reflect.Type) *ComponentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindComponent {
		return s.components[idx]
	}
	return nil
}

func (s *Schema) lookupTag(typ reflect.Type) *TagType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindTag {
		return s.tags[idx]
	}
	return nil
}

func (s *Schema) lookupScript(typ reflect.Type) *ScriptType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.index[typ]; ok && s.kinds[typ] == KindScript {
		return s.scripts[idx]
	}
	return nil
}

// ComponentTypeOf returns the descriptor of T, registering it on first use. Configuration errors are
// fatal and panic.
func ComponentTypeOf[T Component](s *Schema) *ComponentType {
	ct, err := RegisterComponent[T](s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return ct
}

// TagTypeOf returns the descriptor of T, registering it on first use.
func TagTypeOf[T Tag](s *Schema) *TagType {
	tt, err := RegisterTag[T](s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return tt
}

// ScriptTypeOf returns the descriptor of T, registering it on first use.
func ScriptTypeOf[T Script](s *Schema) *ScriptType {
	st, err := RegisterScript[T](s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return st
}

// scriptTypeOfValue resolves the descriptor of a script instance's dynamic type. Scripts recorded
// through a command buffer arrive as interface values, so they can't go through the generic path.
func (s *Schema) scriptTypeOfValue(script Script) (*ScriptType, error) {
	if script == nil {
		return nil, eris.Wrap(ErrUnknownType, "script is nil")
	}
	st := s.lookupScript(reflect.TypeOf(script))
	if st == nil {
		return nil, eris.Wrapf(ErrUnknownType, "script %s is not registered", reflect.TypeOf(script))
	}
	return st, nil
}

// ComponentTypeByName returns the component registered under name.
func (s *Schema) ComponentTypeByName(name string) (*ComponentType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.componentNames[name]
	return ct, ok
}

// TagTypeByName returns the tag registered under name.
func (s *Schema) TagTypeByName(name string) (*TagType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tt, ok := s.tagNames[name]
	return tt, ok
}

// ScriptTypeByName returns the script registered under name.
func (s *Schema) ScriptTypeByName(name string) (*ScriptType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.scriptNames[name]
	return st, ok
}

// Component returns the component type at index. Panics if out of range.
func (s *Schema) Component(index int) *ComponentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components[index]
}

// Tag returns the tag type at index. Panics if out of range.
func (s *Schema) Tag(index int) *TagType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags[index]
}

// Components returns all component types in index order.
func (s *Schema) Components() []*ComponentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*ComponentType(nil), s.components...)
}

// Tags returns all tag types in index order.
func (s *Schema) Tags() []*TagType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*TagType(nil), s.tags...)
}

// Scripts returns all script types in index order.
func (s *Schema) Scripts() []*ScriptType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*ScriptType(nil), s.scripts...)
}

func (s *Schema) ComponentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.components)
}

// JSONSchemas returns the JSON schema of every component keyed by component name.
func (s *Schema) JSONSchemas() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.components))
	for _, ct := range s.components {
		out[ct.name] = ct.jsonSchema
	}
	return out
}

// ValidateSchemas checks stored component schemas, keyed by name, against the registered ones.
// Unknown names are reported as ErrUnknownType.
func (s *Schema) ValidateSchemas(stored map[string][]byte) error {
	for name, schema := range stored {
		ct, ok := s.ComponentTypeByName(name)
		if !ok {
			return eris.Wrapf(ErrUnknownType, "component %q", name)
		}
		if err := ct.ValidateAgainstSchema(schema); err != nil {
			return err
		}
	}
	return nil
}
