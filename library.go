//go:build !windows

package nativeload

import (
	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

func openLibrary(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load shared library: %s", path)
	}
	if handle == 0 {
		return 0, errors.Errorf("failed to load shared library: %s: null handle", path)
	}
	return handle, nil
}

func closeLibrary(handle uintptr) error {
	if handle == 0 {
		return errors.New("invalid library handle")
	}
	if err := purego.Dlclose(handle); err != nil {
		return errors.Errorf("failed to close library: %s", err.Error())
	}
	return nil
}
