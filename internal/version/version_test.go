package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	assert.Equal(t, "rehab-server dev (unknown, built unknown)", String("rehab-server"))

	Version, GitSHA, BuildTime = "0.3.1", "0123456789abcdef0123", "2026-10-01T12:00:00Z"
	assert.Equal(t, "rehab-replay 0.3.1 (0123456789ab, built 2026-10-01T12:00:00Z)", String("rehab-replay"))
}
