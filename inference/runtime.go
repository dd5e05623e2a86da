// Package inference - ONNX Runtime environment lifecycle.
package inference

import (
	"fmt"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// SharedLibraryEnv is the environment variable that overrides the location
// of the native ONNX Runtime shared library.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// InitRuntime points ONNX Runtime at its native shared library and
// initializes the environment. Required once per process before any session
// is created; repeated calls are no-ops.
//
// Arguments:
//   - libraryPath: Explicit shared library location. Empty falls back to
//     SharedLibraryEnv and then to the per-platform default.
//
// Returns:
//   - error: An error if the library is missing or the native layer fails
//     to initialize.
func InitRuntime(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}

	path := ResolveSharedLibPath(libraryPath)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("onnxruntime shared library not found at %s: %w", path, err)
	}

	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// DestroyRuntime tears the native environment down. Safe to call when the
// runtime was never initialized.
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("error destroying ORT environment: %w", err)
	}
	return nil
}

// ResolveSharedLibPath picks the native library location: explicit argument,
// then environment variable, then the per-platform default.
func ResolveSharedLibPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv(SharedLibraryEnv); fromEnv != "" {
		return fromEnv
	}
	return defaultSharedLibPath()
}

// defaultSharedLibPath returns the conventional third_party location for the
// current platform.
func defaultSharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		return "third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
