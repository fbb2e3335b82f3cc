package routing

import (
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/session"
	"gotest.tools/v3/assert"
)

func TestResolveExplicitTarget(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(1)
	conn.Target = session.CommandTarget{TargetEntity: 42, Set: true}

	got := table.Resolve(0, 0, conn)
	assert.Equal(t, got, conn.Target.TargetEntity)
}

func TestResolveExplicitTargetUnset(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(1)

	got := table.Resolve(0, 0, conn)
	assert.Equal(t, got.IsValid(), false)
}

func TestResolveGhostHappyPath(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(7)
	table.Bind(SpawnedGhostID{GhostID: 5, SpawnTick: 100}, 99, Owner{NetworkID: 7, AutoCommandTargetEnabled: true})

	got := table.Resolve(5, 100, conn)
	assert.Equal(t, got.IsValid(), true)
}

func TestResolveGhostWrongOwnerDiscarded(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(7)
	table.Bind(SpawnedGhostID{GhostID: 5, SpawnTick: 100}, 99, Owner{NetworkID: 8, AutoCommandTargetEnabled: true})

	got := table.Resolve(5, 100, conn)
	assert.Equal(t, got.IsValid(), false)
}

func TestResolveGhostAutoCommandTargetDisabledDiscarded(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(7)
	table.Bind(SpawnedGhostID{GhostID: 5, SpawnTick: 100}, 99, Owner{NetworkID: 7, AutoCommandTargetEnabled: false})

	got := table.Resolve(5, 100, conn)
	assert.Equal(t, got.IsValid(), false)
}

func TestResolveUnknownGhostDiscarded(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(7)

	got := table.Resolve(123, 456, conn)
	assert.Equal(t, got.IsValid(), false)
}

func TestUnbindRemovesGhost(t *testing.T) {
	table := NewTable()
	conn := session.NewConnection(7)
	ghost := SpawnedGhostID{GhostID: 5, SpawnTick: 100}
	table.Bind(ghost, 99, Owner{NetworkID: 7, AutoCommandTargetEnabled: true})
	table.Unbind(ghost)

	got := table.Resolve(5, 100, conn)
	assert.Equal(t, got.IsValid(), false)
}
