package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, BuildTime)
	assert.NotEmpty(t, GitCommit)
}

func TestResolvePrefersLdflags(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v9.9.9"
	assert.Equal(t, "v9.9.9", Resolve())
	assert.Contains(t, String(), "corpusbuild v9.9.9")
}
