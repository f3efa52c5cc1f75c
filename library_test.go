package nativeload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenLibraryFailures(t *testing.T) {
	t.Run("Missing library file", func(t *testing.T) {
		_, err := openLibrary(filepath.Join(t.TempDir(), "nonexistent_library.so"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to load shared library")
	})

	t.Run("Invalid library file", func(t *testing.T) {
		fakeLibPath := filepath.Join(t.TempDir(), "fake_library.so")
		// Create a fake file that is not a valid shared library
		err := os.WriteFile(fakeLibPath, []byte("not a valid library"), 0644)
		require.NoError(t, err)
		_, err = openLibrary(fakeLibPath)
		require.Error(t, err)
		require.Contains(t, err.Error(), fakeLibPath)
	})
}

func TestCloseLibraryFailures(t *testing.T) {
	t.Run("Invalid handle", func(t *testing.T) {
		err := closeLibrary(0)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid library handle")
	})

	t.Run("Nil library", func(t *testing.T) {
		var lib *Library
		require.Error(t, lib.Close())
	})
}

func TestExtractAndLoadWithSystemLoader(t *testing.T) {
	e, err := NewExtractor(testBundle(), WithScratchRoot(t.TempDir()))
	require.NoError(t, err)
	defer func() {
		_ = e.Close()
	}()

	// the bundled bytes are not a real image, so the OS loader must reject them
	lib, err := e.ExtractAndLoad(LibStdCxxResourcePath64)
	require.Nil(t, lib)
	require.ErrorIs(t, err, ErrLoad)
	require.FileExists(t, filepath.Join(e.Dir(), "libstdc++_6.0.22.so"))
}
