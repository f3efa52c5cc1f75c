//go:build !embed_libstdcxx

package nativeload

import "embed"

var bundled embed.FS
