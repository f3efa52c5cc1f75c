package nativeload

import (
	"io/fs"
	"os"
	"strconv"
	"sync"
)

const (
	// EnvScratchDir overrides the directory scratch directories are created in.
	EnvScratchDir = "NATIVELOAD_SCRATCH_DIR"
	// EnvSkipSystemProbe forces extraction even when the system provides the library.
	EnvSkipSystemProbe = "NATIVELOAD_SKIP_SYSTEM_PROBE"
)

func getScratchRoot() string {
	if dir := os.Getenv(EnvScratchDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

func skipSystemProbe() bool {
	skip, err := strconv.ParseBool(os.Getenv(EnvSkipSystemProbe))
	return err == nil && skip
}

var (
	defaultMu     sync.Mutex
	defaultLoader *Loader
)

// Load ensures the libstdc++ preset for the current platform is available,
// using a process-wide loader over the bundled resources. On platforms
// without a preset it reports OutcomeUnsupported.
func Load() Result {
	l, err := getDefaultLoader()
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return l.EnsureLoaded()
}

// Shutdown removes files extracted by Load. A later Load starts over with a
// fresh scratch directory.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLoader == nil {
		return nil
	}
	err := defaultLoader.Close()
	defaultLoader = nil
	return err
}

func getDefaultLoader() (*Loader, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLoader != nil {
		return defaultLoader, nil
	}
	cfg, ok := PresetFor(DetectPlatform())
	if !ok {
		// the loader reports the platform as unsupported
		cfg = LibStdCxx64()
	}
	l, err := NewLoader(cfg)
	if err != nil {
		return nil, err
	}
	defaultLoader = l
	return l, nil
}

// GetLoaderInfo returns information about the current loader setup
func GetLoaderInfo() map[string]interface{} {
	info := make(map[string]interface{})

	p := DetectPlatform()
	info["platform"] = p.String()
	info["machine"] = p.Machine
	info["scratch_root"] = getScratchRoot()
	info["dir_prefix"] = DefaultDirPrefix

	if cfg, ok := PresetFor(p); ok {
		info["library_name"] = cfg.Name
		info["system_path"] = cfg.SystemPath
		info["resource_path"] = cfg.ResourcePath
		_, err := os.Stat(cfg.SystemPath)
		info["system_provided"] = err == nil
		_, err = fs.Stat(Bundled(), cfg.ResourcePath[1:])
		info["bundled"] = err == nil
	} else {
		info["supported"] = false
	}

	env := make(map[string]string)
	if dir := os.Getenv(EnvScratchDir); dir != "" {
		env[EnvScratchDir] = dir
	}
	if skip := os.Getenv(EnvSkipSystemProbe); skip != "" {
		env[EnvSkipSystemProbe] = skip
	}
	info["environment"] = env

	return info
}
