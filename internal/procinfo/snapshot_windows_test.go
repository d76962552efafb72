//go:build windows

package procinfo

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotContainsSelf(t *testing.T) {
	procs, err := Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, procs)

	self, ok := procs[uint32(os.Getpid())]
	require.True(t, ok, "current process missing from snapshot")
	assert.True(t, strings.HasSuffix(strings.ToLower(self.Name), ".exe"))

	name, err := lookupName(uint32(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(self.Name, name))
}
