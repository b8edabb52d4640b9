//go:build !linux && !darwin

package transport

// struct sockaddr_in and struct sockaddr_in6 on the remaining targets.
const (
	sizeofSockaddrInet4 = 16
	sizeofSockaddrInet6 = 28
)
