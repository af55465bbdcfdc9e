//go:build !unix

package worker

import (
	"strconv"
	"syscall"
)

func errnoName(errno syscall.Errno) string {
	return "ERRNO" + strconv.Itoa(int(errno))
}
