package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsHonorDataDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("CMDK_DATA_DIR", dir)
	ResetPaths()
	t.Cleanup(ResetPaths)

	assert.Equal(t, dir, DataDir())
	assert.Equal(t, filepath.Join(dir, "cmdk.log"), LogFile())
	assert.Equal(t, filepath.Join(dir, "history.db"), HistoryFile())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), ConfigFile())
	assert.Equal(t, filepath.Join(dir, "cmdk.sock"), SocketFile())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
