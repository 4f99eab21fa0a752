//go:build unix

package selfupdate

import (
	"errors"

	"golang.org/x/sys/unix"
)

func writable(path string) error {
	return unix.Access(path, unix.W_OK)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
