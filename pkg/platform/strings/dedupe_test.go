package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"_ga", "_gid"}, DedupeAndTrim([]string{"  _ga ", "_gid", "_ga", "", "  "}))
	assert.Empty(t, DedupeAndTrim(nil))
	assert.Equal(t, []string{}, DedupeAndTrim([]string{" "}))
}
