package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sendFull writes all of b to the socket, retrying on interrupted syscalls
// and on short writes. It fails if the peer closes mid-message.
func sendFull(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("error writing to socket: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("connection closed mid-message")
		}
		b = b[n:]
	}
	return nil
}
