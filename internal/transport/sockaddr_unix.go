//go:build linux || darwin

package transport

import "golang.org/x/sys/unix"

const (
	sizeofSockaddrInet4 = unix.SizeofSockaddrInet4
	sizeofSockaddrInet6 = unix.SizeofSockaddrInet6
)
