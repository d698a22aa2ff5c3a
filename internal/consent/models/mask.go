package models

// MaskLength is the length of every non-sentinel mask.
const MaskLength = 4

// Canonical stored values.
const (
	// MaskDeclined predates category granularity: the visitor declined, or
	// let the idle window lapse. It is one character long and never decodes.
	MaskDeclined  = "0"
	MaskAcceptAll = "1111"
	MaskRejectAll = "1000"
)

// Flags is the decoded form of a consent mask.
type Flags struct {
	Strict      bool
	Functional  bool
	Performance bool
	Targeting   bool
}

// AcceptAll and RejectAll are the flags behind the canonical masks.
var (
	AcceptAll = Flags{Strict: true, Functional: true, Performance: true, Targeting: true}
	RejectAll = Flags{Strict: true}
)

// Decode splits raw into positional flags. A flag is on only when its
// character is exactly '1'. Values shorter than MaskLength, the declined
// sentinel included, decode to all-false. Characters past MaskLength are ignored.
func Decode(raw string) Flags {
	if len(raw) < MaskLength {
		return Flags{}
	}
	return Flags{
		Strict:      raw[0] == '1',
		Functional:  raw[1] == '1',
		Performance: raw[2] == '1',
		Targeting:   raw[3] == '1',
	}
}

// Encode renders f as a mask. Position 0 is always '1' whatever f.Strict says.
func Encode(f Flags) string {
	b := []byte{'1', '0', '0', '0'}
	if f.Functional {
		b[1] = '1'
	}
	if f.Performance {
		b[2] = '1'
	}
	if f.Targeting {
		b[3] = '1'
	}
	return string(b)
}

// IsRecorded reports whether a stored value counts as recorded consent:
// the cookie exists and is not the declined sentinel.
func IsRecorded(raw string, present bool) bool {
	return present && raw != MaskDeclined
}

// FlagsFor grants exactly the given categories, plus strict.
func FlagsFor(categories ...Category) Flags {
	f := Flags{Strict: true}
	for _, c := range categories {
		f = f.with(c, true)
	}
	return f
}

// Allows reports the flag stored for c.
func (f Flags) Allows(c Category) bool {
	switch c {
	case CategoryStrict:
		return f.Strict
	case CategoryFunctional:
		return f.Functional
	case CategoryPerformance:
		return f.Performance
	case CategoryTargeting:
		return f.Targeting
	default:
		return false
	}
}

func (f Flags) with(c Category, on bool) Flags {
	switch c {
	case CategoryStrict:
		f.Strict = on
	case CategoryFunctional:
		f.Functional = on
	case CategoryPerformance:
		f.Performance = on
	case CategoryTargeting:
		f.Targeting = on
	}
	return f
}

// Level is the broadest granted category of the nesting chain
// strict < functional < targeting.
func (f Flags) Level() Category {
	switch {
	case f.Targeting:
		return CategoryTargeting
	case f.Functional:
		return CategoryFunctional
	default:
		return CategoryStrict
	}
}

// Consistent reports whether f respects the dependency targeting ⇒ functional.
// Masks are never rejected when this is false; callers only report it.
func (f Flags) Consistent() bool {
	return !f.Targeting || f.Functional
}

// Mask is shorthand for Encode(f).
func (f Flags) Mask() string {
	return Encode(f)
}
