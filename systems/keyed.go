package systems

import (
	"github.com/pthm-cable/psys/components"
)

// KeyedState returns the state of a keyed particle at normalized age t in
// [0,1]. The particle travels through the target keys in order, spending an
// equal share of its life between each pair.
func KeyedState(targets []components.Key, t float64) (components.Key, bool) {
	switch len(targets) {
	case 0:
		return components.Key{}, false
	case 1:
		return targets[0], true
	}
	t = clamp01(t)
	pos := t * float64(len(targets)-1)
	i := int(pos)
	if i >= len(targets)-1 {
		i = len(targets) - 2
	}
	return LerpKey(targets[i], targets[i+1], pos-float64(i)), true
}
