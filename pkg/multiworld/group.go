// Package multiworld implements the Multi-World Group scheduler (spec.md
// §4.11, C11): swapping the active physics-world singleton for an alternate
// world, running a caller-supplied system set against it, then restoring
// the original — the same connect/run/release shape pkg/debugbridge uses
// for client bookkeeping, generalized to a single swap slot per Run call.
package multiworld

import "github.com/fenwicklabs/ticknet/pkg/physics"

// Systems is the user-supplied set of work to run once a world is bound as
// the active one. It receives the world currently bound for the duration
// of the call.
type Systems func(active *physics.World)

// PickerDisabler toggles whatever subsystem normally decides which world's
// results reach rendering/export; the alternate world's picker must stay
// disabled while its systems run standalone (spec.md §4.11: "the alternate
// world's simulation-picker subsystem is disabled during the swap").
type PickerDisabler interface {
	SetSimulationPickerEnabled(enabled bool)
}

// Group holds a primary world plus a set of alternate worlds indexed by an
// arbitrary caller-chosen key (e.g. a level or arena id).
type Group struct {
	Primary *physics.World

	// ShareStaticColliders clears the static query's world filter so
	// static geometry built once is visible to every alternate world
	// (spec.md §4.11).
	ShareStaticColliders bool

	alternates map[int]*physics.World
	pickers    map[int]PickerDisabler
}

// NewGroup returns an empty Group bound to primary.
func NewGroup(primary *physics.World) *Group {
	return &Group{Primary: primary, alternates: make(map[int]*physics.World), pickers: make(map[int]PickerDisabler)}
}

// Bind registers an alternate world under index, along with the picker
// subsystem Run must disable while that world is active.
func (g *Group) Bind(index int, world *physics.World, picker PickerDisabler) {
	g.alternates[index] = world
	g.pickers[index] = picker
}

// Unbind removes a previously bound alternate world.
func (g *Group) Unbind(index int) {
	delete(g.alternates, index)
	delete(g.pickers, index)
}

// Run swaps in the alternate world bound at index, runs systems against it,
// then restores the group's primary binding — the scheduler contract of
// spec.md §4.11. If ShareStaticColliders is set and the group has a primary
// world, the alternate world's statics are replaced with the primary's
// (even when the primary has none) for the duration of the call so shared
// geometry stays in sync.
func (g *Group) Run(index int, systems Systems) bool {
	alt, ok := g.alternates[index]
	if !ok {
		return false
	}
	picker := g.pickers[index]
	if picker != nil {
		picker.SetSimulationPickerEnabled(false)
	}

	var restoreStatics []physics.Body
	var restoreCount int
	sharing := g.ShareStaticColliders && g.Primary != nil
	if sharing {
		restoreStatics, restoreCount = altStatics(alt)
		shareStatics(alt, g.Primary)
	}

	systems(alt)

	if sharing {
		unshareStatics(alt, restoreStatics, restoreCount)
	}
	if picker != nil {
		picker.SetSimulationPickerEnabled(true)
	}
	return true
}

// altStatics captures alt's current static body range so Run can restore it
// after a shared-statics swap.
func altStatics(alt *physics.World) ([]physics.Body, int) {
	saved := make([]physics.Body, alt.StaticCount)
	copy(saved, alt.Bodies[alt.DynamicCount:])
	return saved, alt.StaticCount
}

// shareStatics replaces alt's static body range with primary's, keeping
// alt's own dynamic bodies untouched.
func shareStatics(alt, primary *physics.World) {
	dyn := alt.Bodies[:alt.DynamicCount]
	sharedStatics := primary.Bodies[primary.DynamicCount:]
	merged := make([]physics.Body, 0, len(dyn)+len(sharedStatics))
	merged = append(merged, dyn...)
	merged = append(merged, sharedStatics...)
	alt.Bodies = merged
	alt.StaticCount = len(sharedStatics)
}

// unshareStatics restores alt's own static body range after a Run call.
func unshareStatics(alt *physics.World, saved []physics.Body, count int) {
	dyn := alt.Bodies[:alt.DynamicCount]
	merged := make([]physics.Body, 0, len(dyn)+count)
	merged = append(merged, dyn...)
	merged = append(merged, saved...)
	alt.Bodies = merged
	alt.StaticCount = count
}
