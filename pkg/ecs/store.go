package ecs

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/argus-labs/entitystore/pkg/assert"
	"github.com/argus-labs/entitystore/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// EntityStore owns the node table, the archetype registry, and everything hanging off entities. It
// must only be used from a single owner goroutine. The one exception is id reservation, which
// command buffers perform while recording on other goroutines.
type EntityStore struct {
	id     uuid.UUID
	schema *Schema
	opts   Options
	logger zerolog.Logger

	nodes       []EntityNode
	entityCount int

	idMu     sync.Mutex // Guards nextID, freeIDs and reserved
	nextID   int
	freeIDs  []int
	reserved map[int]struct{} // Ids handed to command buffers and not created yet

	pids map[int64]int // pid -> id, only used with RandomPids
	rng  *rand.Rand

	archetypes   []*Archetype
	archetypeMap map[archetypeKey]*Archetype

	scripts    []entityScripts
	events     eventHub
	bufferPool []*commandBufferData

	moves int // Number of archetype migrations, used by tests
}

// NewEntityStore creates a store for schema. Options are layered on top of the defaults and the
// ENTITY_STORE_* environment variables.
func NewEntityStore(schema *Schema, opts Options) (*EntityStore, error) {
	if schema == nil {
		return nil, eris.New("schema cannot be nil")
	}

	cfg, err := loadStoreConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load entity store config")
	}

	options := newDefaultOptions()
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid entity store options")
	}

	if options.Logger == nil {
		logCfg, err := telemetry.LoadConfig()
		if err != nil {
			return nil, eris.Wrap(err, "failed to load log config")
		}
		logger := telemetry.NewLogger(logCfg)
		options.Logger = &logger
	}

	seed := options.PidSeed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // pids don't need a secure source
	}

	s := &EntityStore{
		id:           uuid.New(),
		schema:       schema,
		opts:         options,
		nextID:       1, // 0 is the null entity
		reserved:     make(map[int]struct{}),
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // see above
		archetypeMap: make(map[archetypeKey]*Archetype),
		scripts:      make([]entityScripts, 1), // Index 0 means "no scripts"
		events:       newEventHub(),
	}
	s.logger = telemetry.Component(*options.Logger, "entity_store").
		With().Str("store_id", s.id.String()).Logger()

	if options.PidType == RandomPids {
		s.pids = make(map[int64]int)
	}
	s.EnsureNodesLength(options.NodeCapacity)
	s.GetArchetype(ComponentTypes{}, Tags{})

	s.logger.Debug().
		Str("pid_type", options.PidType.String()).
		Str("id_policy", options.IDPolicy.String()).
		Int("node_capacity", options.NodeCapacity).
		Msg("entity store created")
	return s, nil
}

// ID returns the unique id of this store instance.
func (s *EntityStore) ID() uuid.UUID { return s.id }

func (s *EntityStore) Schema() *Schema { return s.schema }

func (s *EntityStore) Logger() *zerolog.Logger { return &s.logger }

// Count returns the number of live entities.
func (s *EntityStore) Count() int { return s.entityCount }

// NodesLength returns the length of the node table.
func (s *EntityStore) NodesLength() int { return len(s.nodes) }

// Node returns a copy of the node of id.
func (s *EntityStore) Node(id int) (EntityNode, bool) {
	if id < 0 || id >= len(s.nodes) {
		return EntityNode{}, false
	}
	return s.nodes[id], true
}

// EnsureNodesLength grows the node table to at least length. The table grows by doubling and never
// shrinks. Every new slot is initialised with its own id.
func (s *EntityStore) EnsureNodesLength(length int) {
	current := len(s.nodes)
	if length <= current {
		return
	}

	newLength := max(length, 2*current)
	nodes := make([]EntityNode, newLength)
	copy(nodes, s.nodes)
	for i := current; i < newLength; i++ {
		nodes[i].id = i
	}
	s.nodes = nodes
}

// -------------------------------------------------------------------------------------------------
// Archetypes
// -------------------------------------------------------------------------------------------------

// Archetypes returns the archetype registry. The empty archetype is always at index 0.
func (s *EntityStore) Archetypes() []*Archetype { return s.archetypes }

// DefaultArchetype returns the archetype with no components and no tags.
func (s *EntityStore) DefaultArchetype() *Archetype { return s.archetypes[0] }

// GetArchetype returns the archetype for the given identity, creating it if it doesn't exist yet.
// Calling it again with the same identity returns the same instance.
func (s *EntityStore) GetArchetype(components ComponentTypes, tags Tags) *Archetype {
	key := newArchetypeKey(components, tags)
	if arch, ok := s.archetypeMap[key]; ok {
		return arch
	}

	arch := newArchetype(s, len(s.archetypeMap), components, tags)
	if arch.index != len(s.archetypes) {
		panic(eris.Errorf("archetype %s created out of sequence: index %d, registry length %d",
			arch, arch.index, len(s.archetypes)))
	}
	s.archetypes = append(s.archetypes, arch)
	s.archetypeMap[key] = arch

	logArchetypeCreated(&s.logger, arch)
	return arch
}

// moveEntity migrates node to arch. It is the only place where an entity changes archetype.
func (s *EntityStore) moveEntity(node *EntityNode, arch *Archetype) {
	if node.archetype == arch {
		return
	}
	node.compIndex = MoveEntityTo(node.archetype, node.id, node.compIndex, arch)
	node.archetype = arch
	s.moves++
}

// -------------------------------------------------------------------------------------------------
// Entity lifecycle
// -------------------------------------------------------------------------------------------------

// CreateEntity creates an entity in the empty archetype.
func (s *EntityStore) CreateEntity() Entity {
	id := s.reserveID()
	s.createEntityNode(id, s.newPid(id))
	return Entity{store: s, id: id}
}

// CreateEntityWithID creates an entity with a caller-chosen id. The id must be neither alive nor
// reserved by a command buffer.
func (s *EntityStore) CreateEntityWithID(id int) (Entity, error) {
	if id <= 0 {
		return Entity{}, eris.Errorf("invalid entity id %d", id)
	}
	if s.isAlive(id) {
		return Entity{}, eris.Wrapf(ErrEntityIDInUse, "entity %d", id)
	}
	if err := s.claimID(id); err != nil {
		return Entity{}, err
	}
	s.createEntityNode(id, s.newPid(id))
	return Entity{store: s, id: id}, nil
}

// CreateEntityWithPid creates an entity with a caller-chosen pid. With PidAsID the pid is also used as
// the entity id.
func (s *EntityStore) CreateEntityWithPid(pid int64) (Entity, error) {
	if pid <= 0 {
		return Entity{}, eris.Errorf("invalid pid %d", pid)
	}
	if s.opts.PidType == PidAsID {
		if pid > math.MaxInt32 {
			return Entity{}, eris.Errorf("pid %d exceeds the id range", pid)
		}
		return s.CreateEntityWithID(int(pid))
	}

	if _, ok := s.pids[pid]; ok {
		return Entity{}, eris.Wrapf(ErrPidInUse, "pid %d", pid)
	}
	id := s.reserveID()
	s.createEntityNode(id, pid)
	s.pids[pid] = id
	return Entity{store: s, id: id}, nil
}

// createEntityNode makes id alive in the empty archetype. Creating an id that's already alive is a
// no-op, which lets ids reserved by a command buffer be materialised exactly once.
func (s *EntityStore) createEntityNode(id int, pid int64) *EntityNode {
	s.EnsureNodesLength(id + 1)
	node := &s.nodes[id]
	if node.IsCreated() {
		return node
	}

	arch := s.archetypes[0]
	node.archetype = arch
	node.compIndex = arch.addRow(id)
	node.scriptIndex = 0
	node.pid = pid
	node.flags |= NodeCreated
	s.entityCount++
	s.unreserveID(id)
	return node
}

// DeleteEntity removes the entity, its components, scripts, and every handler registered for it.
func (s *EntityStore) DeleteEntity(id int) error {
	node, err := s.aliveNode(id)
	if err != nil {
		return err
	}

	node.archetype.removeRow(node.compIndex)
	if node.scriptIndex != 0 {
		s.removeAllScripts(node)
	}
	s.events.removeEntity(id)
	node.events = 0
	assert.That(s.events.entityHandlerCount(id) == 0, "entity %d still has handlers after delete", id)

	if s.pids != nil {
		delete(s.pids, node.pid)
	}
	node.archetype = nil
	node.compIndex = 0
	node.pid = 0
	node.flags &^= NodeCreated
	s.entityCount--

	s.releaseID(id)
	return nil
}

// Entity returns a handle of a live entity.
func (s *EntityStore) Entity(id int) (Entity, bool) {
	if !s.isAlive(id) {
		return Entity{}, false
	}
	return Entity{store: s, id: id}, true
}

// EntityByPid returns the live entity with the given pid.
func (s *EntityStore) EntityByPid(pid int64) (Entity, bool) {
	if s.pids == nil {
		if pid <= 0 || pid > math.MaxInt32 {
			return Entity{}, false
		}
		return s.Entity(int(pid))
	}
	id, ok := s.pids[pid]
	if !ok {
		return Entity{}, false
	}
	return s.Entity(id)
}

// Entities returns every live entity in id order.
func (s *EntityStore) Entities() []Entity {
	entities := make([]Entity, 0, s.entityCount)
	for i := range s.nodes {
		if s.nodes[i].IsCreated() {
			entities = append(entities, Entity{store: s, id: i})
		}
	}
	return entities
}

func (s *EntityStore) isAlive(id int) bool {
	return id > 0 && id < len(s.nodes) && s.nodes[id].IsCreated()
}

func (s *EntityStore) aliveNode(id int) (*EntityNode, error) {
	if !s.isAlive(id) {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %d", id)
	}
	return &s.nodes[id], nil
}

// -------------------------------------------------------------------------------------------------
// Id and pid allocation
// -------------------------------------------------------------------------------------------------

// reserveID hands out an id that no one else holds. Safe to call from any goroutine.
func (s *EntityStore) reserveID() int {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if len(s.freeIDs) > 0 {
		id := s.freeIDs[0]
		s.freeIDs = s.freeIDs[1:]
		return id
	}
	id := s.nextID
	s.nextID++
	return id
}

// reserveBufferID hands out an id for a command buffer's deferred creation. The id can't be claimed
// explicitly until the entity is created. Safe to call from any goroutine.
func (s *EntityStore) reserveBufferID() int {
	id := s.reserveID()
	s.idMu.Lock()
	s.reserved[id] = struct{}{}
	s.idMu.Unlock()
	return id
}

func (s *EntityStore) unreserveID(id int) {
	s.idMu.Lock()
	delete(s.reserved, id)
	s.idMu.Unlock()
}

// claimID removes an explicitly chosen id from the pools reserveID draws from.
func (s *EntityStore) claimID(id int) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if _, ok := s.reserved[id]; ok {
		return eris.Wrapf(ErrEntityIDInUse, "entity %d is reserved by a command buffer", id)
	}
	if id >= s.nextID {
		s.nextID = id + 1
		return nil
	}
	for i, free := range s.freeIDs {
		if free == id {
			s.freeIDs = append(s.freeIDs[:i:i], s.freeIDs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *EntityStore) releaseID(id int) {
	if s.opts.IDPolicy != IDPolicyRecycle {
		return
	}
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.freeIDs = append(s.freeIDs, id)
}

func (s *EntityStore) newPid(id int) int64 {
	if s.opts.PidType == PidAsID {
		return int64(id)
	}
	for {
		pid := s.rng.Int64N(math.MaxInt64) + 1
		if _, ok := s.pids[pid]; !ok {
			s.pids[pid] = id
			return pid
		}
	}
}
