package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	info := Info{Name: Name, Version: "v0.3.0", CommitHash: "0123456789abcdef", BuildTime: "2026-01-02"}

	assert.Equal(t, "relset v0.3.0 (commit 0123456, built 2026-01-02)", info.String())
	assert.Equal(t, "0123456", info.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, "relset", info.Name)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.NotEmpty(t, info.CommitHash)
}
