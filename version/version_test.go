package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.NotEmpty(t, info.Commit)
	assert.Contains(t, info.String(), "themis-export "+Version)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "3f2c9ab", Info{Commit: "3f2c9ab41e0d"}.Short())
	assert.Equal(t, "abc", Info{Commit: "abc"}.Short())
}
