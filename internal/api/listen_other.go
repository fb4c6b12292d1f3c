//go:build !unix

package api

import "net"

func listenPrivateUnix(path string) (net.Listener, error) {
	return net.Listen("unix", path)
}
