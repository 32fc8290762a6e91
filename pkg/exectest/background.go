// Package exectest helps running subprocesses as part of tests.
package exectest

import (
	"bytes"
	"os/exec"
	"sync"
	"testing"
)

// Background is a command running in the background of a test.
type Background struct {
	tb      testing.TB
	Cmd     *exec.Cmd
	wg      sync.WaitGroup
	done    chan struct{}
	err     error
	errLock sync.Mutex
	// Name prefixes captured output lines in the test log.
	Name      string
	LogStdout bool
	LogStderr bool
}

// NewBackground prepares a command to run in the background of a test.
func NewBackground(tb testing.TB, cmd *exec.Cmd) *Background {
	return &Background{
		tb:   tb,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
}

// Start spawns a goroutine running the process in the background.
// After calling Start, accessing the provided exec.Cmd is unsafe until
// Close() returns. Can only be called once.
func (b *Background) Start() {
	var prefix string
	if b.Name != "" {
		prefix = b.Name + ": "
	}
	if b.LogStdout {
		b.Cmd.Stdout = &logWriter{tb: b.tb, prefix: prefix}
	}
	if b.LogStderr {
		b.Cmd.Stderr = &logWriter{tb: b.tb, prefix: prefix}
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(b.done)
		err := b.Cmd.Run()
		b.errLock.Lock()
		b.err = err
		b.errLock.Unlock()
	}()
}

// Close kills the process and waits for it to exit.
// Close is idempotent.
func (b *Background) Close() {
	if b.Cmd.Process != nil {
		_ = b.Cmd.Process.Kill()
	}
	b.wg.Wait()
}

// Done returns a channel that closes when the command exits.
func (b *Background) Done() <-chan struct{} {
	return b.done
}

// Err returns any error that occurred with the process.
func (b *Background) Err() error {
	b.errLock.Lock()
	defer b.errLock.Unlock()
	return b.err
}

// logWriter forwards complete output lines to the test log.
type logWriter struct {
	tb     testing.TB
	prefix string
	buf    bytes.Buffer
	mu     sync.Mutex
}

func (w *logWriter) Write(buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(buf)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line buffered.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.tb.Log(w.prefix + line[:len(line)-1])
	}
	return len(buf), nil
}
