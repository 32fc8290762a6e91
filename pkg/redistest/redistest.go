// Package redistest contains utilities for unit tests with Redis.
package redistest

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/exectest"
)

// Redis is a Redis server and client for use in end-to-end unit tests.
type Redis struct {
	Cmd    *exec.Cmd
	Client *redis.Client

	bg *exectest.Background
}

// NewRedis starts an ephemeral Redis server and returns a client.
// Tests are skipped when no redis-server binary is installed.
func NewRedis(ctx context.Context, t testing.TB) *Redis {
	if _, err := exec.LookPath("redis-server"); err != nil {
		t.Skip("redis-server not installed")
	}
	dir := t.TempDir()
	socket := filepath.Join(dir, "redis.sock")
	redisCmd := exec.CommandContext(ctx, "redis-server",
		"--port", "0",
		"--unixsocket", socket,
		"--unixsocketperm", "700",
		"--loglevel", "verbose")
	redisCmd.Dir = dir
	bg := exectest.NewBackground(t, redisCmd)
	bg.Name = "redis"
	bg.LogStdout = true
	bg.LogStderr = true
	bg.Start()
	client := redis.NewClient(&redis.Options{
		Network: "unix",
		Addr:    socket,
	})
	// Give Redis a moment to create the socket.
	startupTicker := time.NewTicker(100 * time.Millisecond)
	defer startupTicker.Stop()
	var pingErr error
	for try := 0; try < 30; try++ {
		if try > 0 {
			select {
			case <-startupTicker.C:
			case <-bg.Done():
				t.Fatal("Redis exited during startup:", bg.Err())
			}
		}
		pingErr = client.Ping(ctx).Err()
		if errors.Is(pingErr, redis.ErrClosed) || errors.Is(pingErr, os.ErrNotExist) {
			continue // Redis still not up
		} else if pingErr != nil {
			t.Fatal("Failed to ping Redis:", pingErr.Error())
		}
		t.Log("redistest: Redis is up")
		return &Redis{
			Cmd:    redisCmd,
			Client: client,
			bg:     bg,
		}
	}
	t.Fatal("Failed to ping Redis:", pingErr)
	return nil
}

// Close shuts down the server and client.
func (r *Redis) Close(t testing.TB) {
	_ = r.Client.Close()
	r.bg.Close()
}
