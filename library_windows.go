//go:build windows

package nativeload

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/windows"
)

func openLibrary(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load shared library: %s", path)
	}
	if handle == 0 {
		return 0, errors.Errorf("failed to load shared library: %s: null handle", path)
	}
	return uintptr(handle), nil
}

func closeLibrary(handle uintptr) error {
	if handle == 0 {
		return errors.New("invalid library handle")
	}
	if err := windows.FreeLibrary(windows.Handle(handle)); err != nil {
		return errors.Errorf("failed to close library: %s", err.Error())
	}
	return nil
}
