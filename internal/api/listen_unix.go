//go:build unix

package api

import (
	"net"

	"golang.org/x/sys/unix"
)

// listenPrivateUnix creates the socket with mode 0600 by narrowing the
// umask around bind.
func listenPrivateUnix(path string) (net.Listener, error) {
	old := unix.Umask(0o177)
	defer unix.Umask(old)
	return net.Listen("unix", path)
}
