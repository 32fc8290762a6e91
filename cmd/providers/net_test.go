package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.sock")
	sock, err := ListenUnix(path)
	require.NoError(t, err)
	assert.NoError(t, sock.Close())
}

// A regular file at the socket path must be refused, not removed.
func TestListenUnix_RefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.sock")
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0600))

	_, err := ListenUnix(path)
	assert.Error(t, err)

	buf, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "not a socket", string(buf))
}
