//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// maxPipes is the number of discord-ipc-N endpoints probed.
const maxPipes = 10

// SocketPaths lists candidate pipe names in probe order.
func SocketPaths() []string {
	paths := make([]string, 0, maxPipes)
	for i := 0; i < maxPipes; i++ {
		paths = append(paths, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return paths
}

// Dial opens the first Discord named pipe that exists.
// The handle is opened for overlapped I/O so Close unblocks pending reads.
func Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var errs []error
	for _, path := range SocketPaths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := windows.UTF16PtrFromString(path)
		if err != nil {
			return nil, err
		}
		h, err := windows.CreateFile(
			name,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			windows.FILE_FLAG_OVERLAPPED,
			0,
		)
		if err != nil {
			if !errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
			continue
		}
		return os.NewFile(uintptr(h), path), nil
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("no discord ipc pipe accepted: %w", errors.Join(errs...))
	}
	return nil, errors.New("no discord ipc pipe found")
}
