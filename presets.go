package nativeload

const (
	LibStdCxxName = "libstdc++"

	LibStdCxxSystemPath64   = "/usr/lib64/libstdc++.so.6.0.22"
	LibStdCxxResourcePath64 = "/lib/linux64/libstdc++_6.0.22.so"
	LibStdCxxSystemPath32   = "/usr/lib/libstdc++.so.6.0.22"
	LibStdCxxResourcePath32 = "/lib/linux32/libstdc++_6.0.22.so"
)

// LibStdCxx64 loads the bundled libstdc++ 6.0.22 on 64-bit x86 Linux unless
// the host already has it under /usr/lib64.
func LibStdCxx64() Config {
	return Config{
		Name:         LibStdCxxName,
		Supported:    IsLinuxX64,
		SystemPath:   LibStdCxxSystemPath64,
		ResourcePath: LibStdCxxResourcePath64,
		Deduplicate:  true,
	}
}

// LibStdCxx32 is the 32-bit x86 Linux counterpart of LibStdCxx64.
func LibStdCxx32() Config {
	return Config{
		Name:         LibStdCxxName,
		Supported:    IsLinuxX86,
		SystemPath:   LibStdCxxSystemPath32,
		ResourcePath: LibStdCxxResourcePath32,
		Deduplicate:  true,
	}
}

// PresetFor picks the libstdc++ preset matching p.
func PresetFor(p Platform) (Config, bool) {
	switch {
	case IsLinuxX64(p):
		return LibStdCxx64(), true
	case IsLinuxX86(p):
		return LibStdCxx32(), true
	default:
		return Config{}, false
	}
}
