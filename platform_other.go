//go:build !linux

package nativeload

import "runtime"

func machineName() string {
	return runtime.GOARCH
}
