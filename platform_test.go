package nativeload

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	p := DetectPlatform()
	require.Equal(t, runtime.GOOS, p.OS)
	require.Equal(t, runtime.GOARCH, p.Arch)
	require.NotEmpty(t, p.Machine)
	require.Equal(t, strconv.IntSize == 64, p.Is64Bit)
	require.Contains(t, p.String(), runtime.GOOS+"/"+runtime.GOARCH)
}

func TestPlatformPredicates(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		x64      bool
		x86      bool
	}{
		{name: "linux amd64", platform: Platform{OS: "linux", Arch: "amd64", Is64Bit: true}, x64: true},
		{name: "linux 386", platform: Platform{OS: "linux", Arch: "386", Is64Bit: false}, x86: true},
		{name: "linux arm64", platform: Platform{OS: "linux", Arch: "arm64", Is64Bit: true}},
		{name: "linux arm", platform: Platform{OS: "linux", Arch: "arm", Is64Bit: false}},
		{name: "darwin amd64", platform: Platform{OS: "darwin", Arch: "amd64", Is64Bit: true}},
		{name: "windows 386", platform: Platform{OS: "windows", Arch: "386", Is64Bit: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.x64, IsLinuxX64(tt.platform))
			assert.Equal(t, tt.x86, IsLinuxX86(tt.platform))
		})
	}
}

func TestPresetFor(t *testing.T) {
	cfg, ok := PresetFor(Platform{OS: "linux", Arch: "amd64", Is64Bit: true})
	require.True(t, ok)
	require.Equal(t, LibStdCxxSystemPath64, cfg.SystemPath)
	require.Equal(t, LibStdCxxResourcePath64, cfg.ResourcePath)
	require.True(t, cfg.Deduplicate)

	cfg, ok = PresetFor(Platform{OS: "linux", Arch: "386"})
	require.True(t, ok)
	require.Equal(t, LibStdCxxSystemPath32, cfg.SystemPath)
	require.Equal(t, LibStdCxxResourcePath32, cfg.ResourcePath)

	_, ok = PresetFor(Platform{OS: "darwin", Arch: "arm64", Is64Bit: true})
	require.False(t, ok)
}
