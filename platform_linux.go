//go:build linux

package nativeload

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func machineName() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return runtime.GOARCH
	}
	return unix.ByteSliceToString(uts.Machine[:])
}
