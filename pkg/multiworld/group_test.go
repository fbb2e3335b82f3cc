package multiworld

import (
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/physics"
	"gotest.tools/v3/assert"
)

type fakePicker struct{ enabled bool }

func (f *fakePicker) SetSimulationPickerEnabled(enabled bool) { f.enabled = enabled }

func TestRunReturnsFalseForUnboundIndex(t *testing.T) {
	g := NewGroup(&physics.World{})
	ran := g.Run(5, func(*physics.World) {})
	assert.Assert(t, !ran)
}

func TestRunInvokesSystemsAgainstBoundWorld(t *testing.T) {
	g := NewGroup(&physics.World{})
	alt := &physics.World{Bodies: []physics.Body{{Entity: 1}}, DynamicCount: 1}
	g.Bind(0, alt, nil)

	var seen *physics.World
	ran := g.Run(0, func(w *physics.World) { seen = w })
	assert.Assert(t, ran)
	assert.Assert(t, seen == alt)
}

func TestRunDisablesAndRestoresPickerAroundSystems(t *testing.T) {
	g := NewGroup(&physics.World{})
	alt := &physics.World{}
	picker := &fakePicker{enabled: true}
	g.Bind(0, alt, picker)

	var duringRun bool
	g.Run(0, func(*physics.World) { duringRun = picker.enabled })

	assert.Assert(t, !duringRun)
	assert.Assert(t, picker.enabled)
}

func TestRunSharesAndRestoresStaticsWhenEnabled(t *testing.T) {
	primary := &physics.World{
		Bodies:       []physics.Body{{Entity: 100}},
		DynamicCount: 0,
		StaticCount:  1,
	}
	alt := &physics.World{
		Bodies:       []physics.Body{{Entity: 1}, {Entity: 200}},
		DynamicCount: 1,
		StaticCount:  1,
	}
	g := NewGroup(primary)
	g.ShareStaticColliders = true
	g.Bind(0, alt, nil)

	var sawSharedStatic bool
	g.Run(0, func(w *physics.World) {
		sawSharedStatic = w.Bodies[w.DynamicCount].Entity == 100
	})

	assert.Assert(t, sawSharedStatic)
	assert.Equal(t, int(alt.Bodies[alt.DynamicCount].Entity), 200)
}

func TestUnbindRemovesAlternate(t *testing.T) {
	g := NewGroup(&physics.World{})
	g.Bind(0, &physics.World{}, nil)
	g.Unbind(0)
	ran := g.Run(0, func(*physics.World) {})
	assert.Assert(t, !ran)
}
