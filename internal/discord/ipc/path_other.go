//go:build !windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

// maxPipes is the number of discord-ipc-N endpoints probed.
const maxPipes = 10

// SocketPaths lists candidate socket paths in probe order.
func SocketPaths() []string {
	base := runtimeDir()
	dirs := []string{
		base,
		filepath.Join(base, "app", "com.discordapp.Discord"),
		filepath.Join(base, "snap.discord"),
	}
	var paths []string
	for _, dir := range dirs {
		for i := 0; i < maxPipes; i++ {
			paths = append(paths, filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return paths
}

func runtimeDir() string {
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "/tmp"
}

// Dial connects to the first Discord IPC socket that accepts.
func Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var d net.Dialer
	var errs []error
	for _, path := range SocketPaths() {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("no discord ipc socket accepted: %w", errors.Join(errs...))
	}
	return nil, errors.New("no discord ipc socket found")
}
