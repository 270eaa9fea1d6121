package dbservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange() VersionRange {
	return VersionRange{
		MinCompatible: "12.0",
		MaxCompatible: "17.99",
		MinTested:     "14.0",
		MaxTested:     "16.99",
	}
}

func TestCheckVersion_WithinTestedRange(t *testing.T) {
	warn, err := CheckVersion("15.4 (Debian 15.4-1)", testRange())
	require.Nil(t, err)
	assert.False(t, warn)
}

func TestCheckVersion_CompatibleButUntestedWarns(t *testing.T) {
	warn, err := CheckVersion("17.2", testRange())
	require.Nil(t, err)
	assert.True(t, warn)
}

func TestCheckVersion_BelowCompatibleFails(t *testing.T) {
	warn, err := CheckVersion("9.6", testRange())
	require.NotNil(t, err)
	assert.Equal(t, ErrVersion, err.Kind)
	assert.False(t, warn)
}

func TestCheckVersion_AboveCompatibleFails(t *testing.T) {
	warn, err := CheckVersion("18.0", testRange())
	require.NotNil(t, err)
	assert.Equal(t, ErrVersion, err.Kind)
	assert.False(t, warn)
}

func TestCheckVersion_UnparseableVersionFails(t *testing.T) {
	warn, err := CheckVersion("not-a-version", testRange())
	require.NotNil(t, err)
	assert.False(t, warn)
}

func TestParseMajorMinor(t *testing.T) {
	major, minor, ok := parseMajorMinor("15.4 (Debian 15.4-1.pgdg120+1)")
	require.True(t, ok)
	assert.Equal(t, 15, major)
	assert.Equal(t, 4, minor)
}

func TestParseMajorMinor_SingleComponentFails(t *testing.T) {
	_, _, ok := parseMajorMinor("15")
	assert.False(t, ok)
}

func TestCmpMajorMinor(t *testing.T) {
	assert.Equal(t, 0, cmpMajorMinor(15, 4, 15, 4))
	assert.Equal(t, -1, cmpMajorMinor(14, 9, 15, 0))
	assert.Equal(t, 1, cmpMajorMinor(15, 1, 15, 0))
}
