// Package routing resolves a serialized (ghost-id, spawn-tick) pair to a live
// server-side entity, falling back to a connection's explicit command target
// (spec.md §4.6, Routing Resolver / C6).
package routing

import (
	"sync"

	"github.com/fenwicklabs/ticknet/pkg/entity"
	"github.com/fenwicklabs/ticknet/pkg/session"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// GhostID is a client-visible replicated-entity identifier. It is only
// unique in combination with SpawnTick (spec.md §3).
type GhostID int32

// SpawnedGhostID uniquely identifies a ghost across its lifetime.
type SpawnedGhostID struct {
	GhostID   GhostID
	SpawnTick tick.Tick
}

// Owner is the subset of ghost-ownership state the resolver needs to verify:
// which connection owns the ghost, and whether it is presently accepting
// routed commands (spec.md §4.1's AutoCommandTarget capability).
type Owner struct {
	NetworkID             session.NetworkID
	AutoCommandTargetEnabled bool
}

// Table is the server's SpawnedGhostID -> Entity map (spec.md §3). It is
// read-only during receive (spec.md §5); writers are the ghost
// spawn/despawn systems, out of scope here.
type Table struct {
	mu    sync.RWMutex
	ghosts map[SpawnedGhostID]entity.ID
	owners map[entity.ID]Owner
}

// NewTable returns an empty routing table.
func NewTable() *Table {
	return &Table{
		ghosts: make(map[SpawnedGhostID]entity.ID),
		owners: make(map[entity.ID]Owner),
	}
}

// Bind records that id is the live entity for ghost, owned by owner.
func (t *Table) Bind(ghost SpawnedGhostID, id entity.ID, owner Owner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ghosts[ghost] = id
	t.owners[id] = owner
}

// Unbind removes a ghost's entry, e.g. on despawn.
func (t *Table) Unbind(ghost SpawnedGhostID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ghosts[ghost]; ok {
		delete(t.owners, id)
		delete(t.ghosts, ghost)
	}
}

// Resolve implements spec.md §4.6: ghostID == 0 means use the connection's
// explicit CommandTarget; otherwise the ghost must resolve to a live entity
// whose owner matches conn's network id and has AutoCommandTarget enabled.
// Returns the zero entity.ID (invalid) if the payload should be discarded.
func (t *Table) Resolve(ghostID GhostID, spawnTick tick.Tick, conn *session.Connection) entity.ID {
	if ghostID == 0 {
		if conn.Target.Set {
			return conn.Target.TargetEntity
		}
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.ghosts[SpawnedGhostID{GhostID: ghostID, SpawnTick: spawnTick}]
	if !ok {
		return 0
	}
	owner, ok := t.owners[id]
	if !ok {
		return 0
	}
	if owner.NetworkID != conn.NetworkID || !owner.AutoCommandTargetEnabled {
		return 0
	}
	return id
}
