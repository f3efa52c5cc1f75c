package nativeload

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// MinFilenameLength is the shortest accepted filename component of a resource path.
	MinFilenameLength = 3
	// DefaultDirPrefix prefixes the scratch directory name, followed by a nanosecond timestamp.
	DefaultDirPrefix = "nativeutils"

	checksumSuffix = ".sha256"
)

// OpenFunc maps a shared library into the process and returns its handle.
type OpenFunc func(path string) (uintptr, error)

// Library is a shared library that was extracted and loaded by an Extractor.
type Library struct {
	Name   string // filename component of the resource path
	Path   string // absolute path of the extracted copy
	Handle uintptr
}

// Close unloads the library. The extracted file stays until the owning Extractor is closed.
func (l *Library) Close() error {
	if l == nil {
		return errors.New("library is nil")
	}
	return closeLibrary(l.Handle)
}

// Extractor copies shared libraries out of a resource filesystem into a private
// scratch directory and loads them. It is safe for concurrent use; extractions
// are serialized.
type Extractor struct {
	mu          sync.Mutex
	resources   fs.FS
	scratchRoot string
	prefix      string
	open        OpenFunc
	logger      *zap.Logger
	now         func() time.Time

	dir    string
	files  []string
	seen   map[string]struct{}
	closed bool
}

type ExtractorOption func(e *Extractor) error

// WithScratchRoot sets the directory the scratch directory is created in.
func WithScratchRoot(dir string) ExtractorOption {
	return func(e *Extractor) error {
		if dir == "" {
			return errors.New("scratch root cannot be empty")
		}
		e.scratchRoot = dir
		return nil
	}
}

func WithDirPrefix(prefix string) ExtractorOption {
	return func(e *Extractor) error {
		if prefix == "" {
			return errors.New("directory prefix cannot be empty")
		}
		e.prefix = prefix
		return nil
	}
}

// WithOpenFunc replaces the OS dynamic loader.
func WithOpenFunc(open OpenFunc) ExtractorOption {
	return func(e *Extractor) error {
		if open == nil {
			return errors.New("open function cannot be nil")
		}
		e.open = open
		return nil
	}
}

func WithExtractorLogger(logger *zap.Logger) ExtractorOption {
	return func(e *Extractor) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// NewExtractor returns an Extractor reading from resources. Nothing touches the
// filesystem until the first extraction.
func NewExtractor(resources fs.FS, opts ...ExtractorOption) (*Extractor, error) {
	if resources == nil {
		return nil, errors.New("resources cannot be nil")
	}
	e := &Extractor{
		resources:   resources,
		scratchRoot: getScratchRoot(),
		prefix:      DefaultDirPrefix,
		open:        openLibrary,
		logger:      zap.L(),
		now:         time.Now,
		seen:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, errors.Wrap(err, "failed to apply extractor option")
		}
	}
	root, err := filepath.Abs(e.scratchRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve scratch root: %s", e.scratchRoot)
	}
	e.scratchRoot = root
	return e, nil
}

// Dir returns the scratch directory, or "" if nothing has been extracted yet
// or the extractor is closed.
func (e *Extractor) Dir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir
}

// ExtractAndLoad extracts resourcePath from the extractor's resources and loads it.
func (e *Extractor) ExtractAndLoad(resourcePath string) (*Library, error) {
	return e.ExtractAndLoadFrom(resourcePath, nil)
}

// ExtractAndLoadFrom is ExtractAndLoad with an explicit resource filesystem.
// A nil resources falls back to the extractor's own.
//
// resourcePath must be absolute ("/lib/linux64/libfoo.so") and its filename
// at least MinFilenameLength characters long; otherwise ErrInvalidArgument is
// returned before anything is written. A missing resource yields ErrNotFound,
// directory or copy failures ErrIO and a rejected image ErrLoad. The copy is
// registered for removal by Close whether or not loading succeeded.
func (e *Extractor) ExtractAndLoadFrom(resourcePath string, resources fs.FS) (*Library, error) {
	name, filename, err := parseResourcePath(resourcePath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.Wrapf(ErrClosed, "cannot extract %s", resourcePath)
	}
	if resources == nil {
		resources = e.resources
	}

	dir, err := e.ensureDir()
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(dir, filename)

	if err := e.copyResource(resources, name, dest); err != nil {
		return nil, err
	}
	e.logger.Debug("extracted shared library",
		zap.String("resource", resourcePath),
		zap.String("path", dest))

	return e.load(filename, dest)
}

// parseResourcePath validates an absolute resource path and returns its fs.FS
// name and filename. The filename is the last non-empty segment as written;
// "." and ".." segments are rejected rather than resolved.
func parseResourcePath(resourcePath string) (name, filename string, err error) {
	if !strings.HasPrefix(resourcePath, "/") {
		return "", "", errors.Wrapf(ErrInvalidArgument, "the path has to be absolute (start with '/'): %q", resourcePath)
	}
	segments := make([]string, 0, strings.Count(resourcePath, "/"))
	for _, segment := range strings.Split(resourcePath, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) > 0 {
		filename = segments[len(segments)-1]
	}
	if utf8.RuneCountInString(filename) < MinFilenameLength {
		return "", "", errors.Wrapf(ErrInvalidArgument, "the filename has to be at least %d characters long: %q", MinFilenameLength, resourcePath)
	}
	name = strings.Join(segments, "/")
	if !fs.ValidPath(name) {
		return "", "", errors.Wrapf(ErrInvalidArgument, "the path must not contain '.' or '..' segments: %q", resourcePath)
	}
	return name, filename, nil
}

func (e *Extractor) ensureDir() (string, error) {
	if e.dir != "" {
		return e.dir, nil
	}
	dir := filepath.Join(e.scratchRoot, e.prefix+strconv.FormatInt(e.now().UnixNano(), 10))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", withKind(ErrIO, err, "failed to create temp directory %s", dir)
	}
	e.dir = dir
	e.logger.Debug("created scratch directory", zap.String("dir", dir))
	return dir, nil
}

func (e *Extractor) copyResource(resources fs.FS, name, dest string) error {
	src, err := resources.Open(name)
	if err != nil {
		_ = removeFile(dest)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return withKind(ErrNotFound, err, "file /%s was not found inside the bundle", name)
		}
		return withKind(ErrIO, err, "failed to open bundled resource /%s", name)
	}
	defer func() {
		_ = src.Close()
	}()

	expected, err := readChecksum(resources, name)
	if err != nil {
		_ = removeFile(dest)
		return err
	}

	// Write next to the destination and rename over it, so an image that is
	// already mapped from a previous extraction is never truncated in place.
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		_ = removeFile(dest)
		return withKind(ErrIO, err, "failed to create %s", dest)
	}
	fail := func(cause error, format string, args ...interface{}) error {
		_ = tmp.Close()
		_ = removeFile(tmp.Name())
		_ = removeFile(dest)
		return withKind(ErrIO, cause, format, args...)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), src); err != nil {
		return fail(err, "failed to copy /%s to %s", name, dest)
	}
	if err := tmp.Chmod(0o755); err != nil {
		return fail(err, "failed to set library permissions on %s", dest)
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "failed to write %s", dest)
	}
	if expected != "" {
		if actual := hex.EncodeToString(hasher.Sum(nil)); actual != expected {
			return fail(errors.Errorf("checksum mismatch: expected %s, got %s", expected, actual), "failed to verify /%s", name)
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fail(err, "failed to move library into place at %s", dest)
	}
	return nil
}

// readChecksum returns the expected sha256 of name from its optional
// "<name>.sha256" sidecar, or "" if there is none. Both "abc123  file" and
// "sha256:abc123" forms are accepted.
func readChecksum(resources fs.FS, name string) (string, error) {
	data, err := fs.ReadFile(resources, name+checksumSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", withKind(ErrIO, err, "failed to read checksum for /%s", name)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", withKind(ErrIO, errors.New("empty checksum file"), "failed to read checksum for /%s", name)
	}
	return strings.ToLower(strings.TrimPrefix(fields[0], "sha256:")), nil
}

func (e *Extractor) load(filename, dest string) (*Library, error) {
	defer e.register(dest)

	handle, err := e.open(dest)
	if err != nil {
		return nil, withKind(ErrLoad, err, "failed to load %s", dest)
	}
	return &Library{Name: filename, Path: dest, Handle: handle}, nil
}

func (e *Extractor) register(file string) {
	if _, ok := e.seen[file]; ok {
		return
	}
	e.seen[file] = struct{}{}
	e.files = append(e.files, file)
}

// Close removes every extracted file and the scratch directory. Loaded
// libraries stay mapped. Subsequent extractions fail with ErrClosed.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	for _, f := range e.files {
		err = multierr.Append(err, removeFile(f))
	}
	if e.dir != "" {
		if rmErr := os.RemoveAll(e.dir); rmErr != nil {
			err = multierr.Append(err, errors.Wrapf(rmErr, "failed to remove %s", e.dir))
		}
	}
	e.logger.Debug("cleaned up scratch directory", zap.String("dir", e.dir), zap.Int("files", len(e.files)))
	e.dir = ""
	e.files = nil
	e.seen = nil
	return err
}

func removeFile(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove %s", name)
	}
	return nil
}
