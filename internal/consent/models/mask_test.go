package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	dErrors "optin/pkg/domain-errors"
)

type MaskSuite struct {
	suite.Suite
}

func TestMaskSuite(t *testing.T) {
	suite.Run(t, new(MaskSuite))
}

// TestRoundTrip covers every functional/performance/targeting combination.
// Invariant: strict is forced on by Encode, so it always decodes true.
func (s *MaskSuite) TestRoundTrip() {
	for i := 0; i < 8; i++ {
		in := Flags{
			Functional:  i&1 != 0,
			Performance: i&2 != 0,
			Targeting:   i&4 != 0,
		}
		raw := Encode(in)
		s.Len(raw, MaskLength)

		out := Decode(raw)
		s.True(out.Strict, "strict forced on for %s", raw)
		s.Equal(in.Functional, out.Functional, raw)
		s.Equal(in.Performance, out.Performance, raw)
		s.Equal(in.Targeting, out.Targeting, raw)
	}
}

func (s *MaskSuite) TestEncode() {
	s.Equal(MaskAcceptAll, Encode(AcceptAll))
	s.Equal(MaskRejectAll, Encode(RejectAll))
	s.Equal("1000", Encode(Flags{}), "strict written even when unset")
	s.Equal("1110", Encode(Flags{Functional: true, Performance: true}))
	s.Equal("1101", FlagsFor(CategoryFunctional, CategoryTargeting).Mask())
}

func (s *MaskSuite) TestDecode_Permissive() {
	s.Run("short values decode to all false", func() {
		for _, raw := range []string{"", MaskDeclined, "1", "111"} {
			s.Equal(Flags{}, Decode(raw), "raw=%q", raw)
		}
	})

	s.Run("non-1 characters are off", func() {
		s.Equal(Flags{Strict: true, Targeting: true}, Decode("1x?1"))
		s.Equal(Flags{}, Decode("abcd"))
	})

	s.Run("trailing characters are ignored", func() {
		s.Equal(AcceptAll, Decode("111100"))
	})
}

func (s *MaskSuite) TestIsRecorded() {
	s.False(IsRecorded("", false), "absent cookie")
	s.False(IsRecorded(MaskDeclined, true), "declined sentinel")
	s.True(IsRecorded(MaskRejectAll, true), "reject-all is still a recorded decision")
	s.True(IsRecorded(MaskAcceptAll, true))
}

func (s *MaskSuite) TestLevelAndConsistency() {
	s.Equal(CategoryStrict, RejectAll.Level())
	s.Equal(CategoryStrict, FlagsFor(CategoryPerformance).Level())
	s.Equal(CategoryFunctional, FlagsFor(CategoryFunctional).Level())
	s.Equal(CategoryTargeting, AcceptAll.Level())

	s.True(AcceptAll.Consistent())
	s.True(RejectAll.Consistent())
	s.False(Decode("1001").Consistent(), "targeting without functional")
}

func TestDecisionFrom(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		present bool
		want    Decision
	}{
		{"absent", "", false, Decision{}},
		{"declined", MaskDeclined, true, Decision{}},
		{"accept all", MaskAcceptAll, true, Decision{Recorded: true, Functional: true, Performance: true, Targeting: true}},
		{"reject all", MaskRejectAll, true, Decision{Recorded: true}},
		{"no targeting", "1110", true, Decision{Recorded: true, Functional: true, Performance: true}},
		{"malformed", "11", true, Decision{Recorded: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecisionFrom(tc.raw, tc.present))
		})
	}
}

func TestDecisionAllows(t *testing.T) {
	none := Decision{}
	for _, c := range Categories {
		assert.False(t, none.Allows(c), "unrecorded decision allows nothing (%s)", c)
	}

	d := DecisionFrom("1100", true)
	assert.True(t, d.Allows(CategoryStrict))
	assert.True(t, d.Allows(CategoryFunctional))
	assert.False(t, d.Allows(CategoryPerformance))
	assert.False(t, d.Allows(CategoryTargeting))
	assert.False(t, d.Allows(Category("vendor")))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Targeting ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryTargeting, c)
	assert.Equal(t, 3, c.Position())

	_, err = ParseCategory("vendor")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	assert.False(t, CategoryStrict.IsGateable())
	assert.True(t, CategoryPerformance.IsGateable())
	assert.True(t, CategoryTargeting.Broader(CategoryFunctional))
	assert.False(t, CategoryPerformance.Broader(CategoryStrict))
}
