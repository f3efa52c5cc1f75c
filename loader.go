// Package nativeload extracts shared libraries bundled into a Go binary and
// loads them into the running process with the OS dynamic loader.
//
// A Loader decides, per platform, whether a runtime dependency is already
// installed on the host and otherwise hands a bundled copy to an Extractor,
// which writes it to a private scratch directory and dlopens it:
//
//	loader, err := nativeload.NewLoader(nativeload.LibStdCxx64())
//	if err != nil {
//		return err
//	}
//	defer loader.Close()
//	if res := loader.EnsureLoaded(); !res.Ok() {
//		log.Printf("native acceleration unavailable: %v", res.Err)
//	}
package nativeload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Outcome classifies a Loader attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeLoaded
	OutcomeSystemProvided
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeSystemProvided:
		return "system-provided"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what EnsureLoaded reports. Callers decide whether a failure is fatal.
type Result struct {
	Outcome Outcome
	// Path is the system library that satisfied the dependency, or the extracted copy.
	Path    string
	Library *Library // set for OutcomeLoaded
	Err     error    // set for OutcomeFailed
}

func (r Result) Ok() bool { return r.Err == nil && r.Outcome != OutcomeFailed }

// Config describes one bundled library and when it has to be loaded.
type Config struct {
	Name string
	// Supported reports whether the library applies to a platform. Nil means every platform.
	Supported func(Platform) bool
	// SystemPath is probed before extracting; if it exists nothing is loaded.
	SystemPath string
	// SystemConstraint optionally accepts other versions installed next to
	// SystemPath, e.g. ">= 6.0.22, < 7" for "libstdc++.so.6.0.25".
	SystemConstraint string
	ResourcePath     string
	// Deduplicate makes successful attempts sticky; failed attempts are always retried.
	Deduplicate bool
}

func (c Config) validate() error {
	if c.Name == "" {
		return errors.New("library name cannot be empty")
	}
	if c.ResourcePath == "" {
		return errors.New("resource path cannot be empty")
	}
	if _, _, err := parseResourcePath(c.ResourcePath); err != nil {
		return err
	}
	if c.SystemConstraint != "" && c.SystemPath == "" {
		return errors.New("system constraint requires a system path")
	}
	return nil
}

type Loader struct {
	mu            sync.Mutex
	cfg           Config
	constraint    *semver.Constraints
	extractor     *Extractor
	ownsExtractor bool
	platform      func() Platform
	logger        *zap.Logger
	skipProbe     bool

	done   bool
	result Result
}

type LoaderOption func(l *Loader) error

// WithExtractor shares an Extractor between loaders. The loader will not close it.
func WithExtractor(e *Extractor) LoaderOption {
	return func(l *Loader) error {
		if e == nil {
			return errors.New("extractor cannot be nil")
		}
		l.extractor = e
		return nil
	}
}

func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		l.logger = logger
		return nil
	}
}

// WithPlatform overrides platform detection.
func WithPlatform(detect func() Platform) LoaderOption {
	return func(l *Loader) error {
		if detect == nil {
			return errors.New("platform detector cannot be nil")
		}
		l.platform = detect
		return nil
	}
}

// WithSkipSystemProbe always extracts, even if the system provides the library.
func WithSkipSystemProbe(skip bool) LoaderOption {
	return func(l *Loader) error {
		l.skipProbe = skip
		return nil
	}
}

// NewLoader builds a Loader for cfg. Without WithExtractor it owns an
// Extractor over the bundled resources, released by Close.
func NewLoader(cfg Config, opts ...LoaderOption) (*Loader, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config for %q", cfg.Name)
	}
	l := &Loader{
		cfg:       cfg,
		platform:  DetectPlatform,
		logger:    zap.L(),
		skipProbe: skipSystemProbe(),
	}
	if cfg.SystemConstraint != "" {
		constraint, err := semver.NewConstraint(cfg.SystemConstraint)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse system version constraint: %s", cfg.SystemConstraint)
		}
		l.constraint = constraint
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, errors.Wrap(err, "failed to apply loader option")
		}
	}
	if l.extractor == nil {
		e, err := NewExtractor(Bundled(), WithExtractorLogger(l.logger))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create extractor")
		}
		l.extractor = e
		l.ownsExtractor = true
	}
	return l, nil
}

func (l *Loader) Config() Config { return l.cfg }

// EnsureLoaded makes sure the configured library is available in the process.
// Calls are serialized. With Deduplicate, the first successful result is
// returned by every later call without touching the filesystem again.
func (l *Loader) EnsureLoaded() Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Deduplicate && l.done {
		return l.result
	}
	res := l.attempt()
	if res.Ok() {
		l.done = true
		l.result = res
	}
	return res
}

func (l *Loader) attempt() Result {
	log := l.logger.With(zap.String("library", l.cfg.Name))

	p := l.platform()
	if l.cfg.Supported != nil && !l.cfg.Supported(p) {
		log.Debug("platform not supported, skipping", zap.Stringer("platform", p))
		return Result{Outcome: OutcomeUnsupported}
	}

	if found, ok := l.systemProvided(); ok {
		log.Debug("dependency provided by the system", zap.String("path", found))
		return Result{Outcome: OutcomeSystemProvided, Path: found}
	}

	lib, err := l.extractor.ExtractAndLoad(l.cfg.ResourcePath)
	if err != nil {
		log.Warn("failed to load bundled library",
			zap.String("resource", l.cfg.ResourcePath),
			zap.Error(err))
		return Result{Outcome: OutcomeFailed, Err: errors.Wrapf(err, "failed to load %s", l.cfg.Name)}
	}
	log.Debug("loaded bundled library", zap.String("path", lib.Path))
	return Result{Outcome: OutcomeLoaded, Path: lib.Path, Library: lib}
}

func (l *Loader) systemProvided() (string, bool) {
	if l.skipProbe || l.cfg.SystemPath == "" {
		return "", false
	}
	if _, err := os.Stat(l.cfg.SystemPath); err == nil {
		return l.cfg.SystemPath, true
	}
	if l.constraint == nil {
		return "", false
	}
	return findCompatible(l.cfg.SystemPath, l.constraint)
}

// findCompatible looks next to systemPath for "<stem>.so.<version>" files
// whose version satisfies constraint.
func findCompatible(systemPath string, constraint *semver.Constraints) (string, bool) {
	dir, base := filepath.Split(systemPath)
	i := strings.Index(base, ".so.")
	if i < 0 {
		return "", false
	}
	prefix := base[:i+len(".so.")]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ver, err := semver.NewVersion(strings.TrimPrefix(name, prefix))
		if err != nil || !constraint.Check(ver) {
			continue
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// Close releases the loader's own Extractor, removing extracted files.
func (l *Loader) Close() error {
	if !l.ownsExtractor {
		return nil
	}
	return l.extractor.Close()
}
