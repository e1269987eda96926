package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestGet(t *testing.T) {
	info := Get("voxbridge")
	assert.Equal(t, Info{Service: "voxbridge", Version: "dev", Commit: "dev", BuildTime: "unknown"}, info)
	assert.Equal(t, "voxbridge dev (commit dev, built unknown)", info.String())
}
