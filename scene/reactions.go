package scene

import (
	"fmt"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
	"github.com/pthm-cable/psys/systems"
)

// bindReactions gives each new source event of the reactor's kind the next
// free particle. The particle is born at the event time. Events arriving
// when every particle is bound are dropped.
func (ps *ParticleSystem) bindReactions(frame int) error {
	src := ps.source
	events := src.reactions
	if src.cfra != frame {
		if !src.cache.Has(frame) {
			return nil
		}
		evs, err := src.cache.Events(frame)
		if err != nil {
			return fmt.Errorf("system %q source %q: %w", ps.Name, src.Name, err)
		}
		events = evs
	}

	items := ps.particles.Items()
	for i, ev := range events {
		if ev.Kind != ps.st.reactOn {
			continue
		}
		if ps.bound >= len(items) {
			ps.stats.dropped++
			continue
		}
		p := ps.bound
		ps.bound++
		pa := &items[p]
		pa.Site = components.EmissionSite{
			Element: ev.Particle,
			Derived: -1,
			Extra:   components.ReactionTiming{Time: ev.Time, Event: i, Particle: ev.Particle},
		}
		pa.Set(components.FlagUnexist, false)
		ps.react[p] = ev
		systems.InitializeParticle(pa, p, len(items), &ps.st.birth, ps.frand)
	}
	return nil
}

func deathEvent(p int, pa *components.Particle) components.ReactionEvent {
	return components.ReactionEvent{
		Kind:     components.ReactDeath,
		Co:       pa.State.Co,
		Vel:      pa.State.Vel,
		Nor:      surface.Normalize(pa.State.Vel),
		Time:     pa.DieTime,
		Particle: p,
		Source:   -1,
	}
}

// nearEvent reports the first other system with a particle within dist of
// pa. Each particle reports at most once per life.
func nearEvent(p int, pa *components.Particle, dist, t float64, sources []nearSource) (components.ReactionEvent, bool) {
	if pa.Alive != components.Alive || pa.Has(components.FlagNear) {
		return components.ReactionEvent{}, false
	}
	for _, src := range sources {
		nb, ok := src.index.Nearest(pa.State.Co)
		if !ok || nb.Dist2 > dist*dist {
			continue
		}
		return components.ReactionEvent{
			Kind:     components.ReactNear,
			Co:       pa.State.Co,
			Vel:      pa.State.Vel,
			Nor:      surface.Normalize(pa.State.Vel),
			Time:     t,
			Particle: p,
			Source:   src.system,
		}, true
	}
	return components.ReactionEvent{}, false
}
