package models

// Decision is the gating verdict derived from the stored mask for one page
// render. It is never persisted.
type Decision struct {
	Recorded    bool
	Functional  bool
	Performance bool
	Targeting   bool
}

// DecisionFrom derives a Decision from a raw stored value.
func DecisionFrom(raw string, present bool) Decision {
	if !IsRecorded(raw, present) {
		return Decision{}
	}
	f := Decode(raw)
	return Decision{
		Recorded:    true,
		Functional:  f.Functional,
		Performance: f.Performance,
		Targeting:   f.Targeting,
	}
}

// Allows reports whether content gated on c may load.
func (d Decision) Allows(c Category) bool {
	if !d.Recorded {
		return false
	}
	switch c {
	case CategoryStrict:
		return true
	case CategoryFunctional:
		return d.Functional
	case CategoryPerformance:
		return d.Performance
	case CategoryTargeting:
		return d.Targeting
	default:
		return false
	}
}
