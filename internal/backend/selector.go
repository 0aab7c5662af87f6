package backend

import (
	"github.com/MeKo-Tech/camkit/internal/device"
	"github.com/MeKo-Tech/camkit/internal/preview"
)

// Select maps a capability tier and mode to the variant to build. Unknown
// tiers map to the legacy tier, which every platform supports.
func Select(tier device.Tier, mode Mode) Variant {
	switch tier {
	case device.TierIntermediate, device.TierModern:
	default:
		tier = device.TierLegacy
	}
	if mode != ModeBarcode {
		mode = ModePlain
	}
	return Variant{Tier: tier, Mode: mode}
}

// Selector builds backends. The session controller owns one and asks it for a
// new backend at construction, on fallback and on mode switch.
type Selector interface {
	New(v Variant, surface preview.Surface, cb Callback) Backend
}

// Factory is the default Selector.
type Factory struct {
	deps Deps
}

// NewFactory returns a factory sharing deps with every backend it builds.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps.withDefaults()}
}

// New implements Selector.
func (f *Factory) New(v Variant, surface preview.Surface, cb Callback) Backend {
	return New(v, surface, cb, f.deps)
}

// Select builds the backend Select(tier, mode) names.
func (f *Factory) Select(tier device.Tier, mode Mode, surface preview.Surface, cb Callback) Backend {
	return f.New(Select(tier, mode), surface, cb)
}
