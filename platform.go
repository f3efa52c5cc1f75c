package nativeload

import (
	"fmt"
	"runtime"
	"strconv"
)

// Platform describes the host the process is running on.
type Platform struct {
	OS      string // runtime.GOOS
	Arch    string // runtime.GOARCH
	Machine string // kernel machine name, e.g. x86_64 or i686
	Is64Bit bool   // word size of this process, not of the kernel
}

// DetectPlatform inspects the running process and host. It is cheap and
// computed on every call.
func DetectPlatform() Platform {
	return Platform{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Machine: machineName(),
		Is64Bit: strconv.IntSize == 64,
	}
}

func (p Platform) IsLinux() bool { return p.OS == "linux" }

// IsX86 reports whether the process runs on the x86 family (32 or 64 bit).
func (p Platform) IsX86() bool { return p.Arch == "amd64" || p.Arch == "386" }

func (p Platform) String() string {
	bits := 32
	if p.Is64Bit {
		bits = 64
	}
	return fmt.Sprintf("%s/%s (%s, %d-bit)", p.OS, p.Arch, p.Machine, bits)
}

// IsLinuxX64 matches 64-bit x86 Linux processes.
func IsLinuxX64(p Platform) bool { return p.IsLinux() && p.IsX86() && p.Is64Bit }

// IsLinuxX86 matches 32-bit x86 Linux processes, including ones running on a 64-bit kernel.
func IsLinuxX86(p Platform) bool { return p.IsLinux() && p.IsX86() && !p.Is64Bit }
