//go:build embed_libstdcxx

package nativeload

import "embed"

//go:embed lib
var bundled embed.FS
