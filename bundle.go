package nativeload

import "io/fs"

// Bundled returns the shared libraries compiled into the binary. Build with
// -tags embed_libstdcxx to embed the lib/ tree; otherwise it is empty and
// every extraction fails with ErrNotFound.
func Bundled() fs.FS {
	return bundled
}
