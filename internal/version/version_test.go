package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.2.3", Commit: "abc1234", BuildTime: "2026-01-01T00:00:00Z", GoVersion: "go1.24"}
	assert.Equal(t, "v1.2.3 (abc1234, built 2026-01-01T00:00:00Z, go1.24)", info.String())
}
