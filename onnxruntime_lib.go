package speechseg

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// OrtLibEnv names the environment variable that overrides ONNX Runtime
// shared library discovery.
const OrtLibEnv = "SPEECHSEG_ORT_LIB_PATH"

// BundledLibDir is the directory name under which platform-specific ONNX Runtime
// libraries are stored (e.g. lib/linux_amd64/libonnxruntime.so).
const BundledLibDir = "lib"

// DataDir is the directory (e.g. data/) where ONNX models and optionally the
// runtime are stored. Runtime files may be named e.g. onnxruntime_arm64.dylib.
const DataDir = "data"

func pathExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// ortLibFiles are the file names tried for one OS. Inside data/ the runtime
// carries its architecture in the name (onnxruntime_arm64.dylib); under
// lib/<os>_<arch>/ the release names are kept, versioned first.
type ortLibFiles struct {
	dataPattern string // %s is GOARCH
	release     []string
}

var ortLibsByOS = map[string]ortLibFiles{
	"darwin":  {dataPattern: "onnxruntime_%s.dylib", release: []string{"libonnxruntime.dylib"}},
	"windows": {dataPattern: "onnxruntime.dll", release: []string{"onnxruntime.dll"}},
	"linux":   {dataPattern: "onnxruntime_%s.so", release: []string{"libonnxruntime.so.1.23.2", "libonnxruntime.so"}},
}

// ortLibsFor falls back to the linux names for other unixes.
func ortLibsFor(goos string) ortLibFiles {
	if f, ok := ortLibsByOS[goos]; ok {
		return f
	}
	return ortLibsByOS["linux"]
}

// candidates lists every bundled path under base in lookup order.
func (f ortLibFiles) candidates(base, goos, goarch string) []string {
	data := f.dataPattern
	if strings.Contains(data, "%s") {
		data = fmt.Sprintf(data, goarch)
	}
	out := []string{filepath.Join(base, DataDir, data)}
	for _, name := range f.release {
		out = append(out, filepath.Join(base, BundledLibDir, goos+"_"+goarch, name))
	}
	return out
}

// candidateBaseDirs is the working directory plus, if it differs, the
// executable's directory.
func candidateBaseDirs() []string {
	dirs := []string{}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if d := filepath.Dir(exe); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// resolveBundledLib tries each base dir's data/ file before any lib/ dir, so
// a runtime dropped next to the models wins.
func resolveBundledLib(baseDirs []string) string {
	files := ortLibsFor(runtime.GOOS)
	var dataPaths, releasePaths []string
	for _, base := range baseDirs {
		if base == "" {
			continue
		}
		c := files.candidates(base, runtime.GOOS, runtime.GOARCH)
		dataPaths = append(dataPaths, c[0])
		releasePaths = append(releasePaths, c[1:]...)
	}
	for _, p := range append(dataPaths, releasePaths...) {
		if pathExists(p) {
			return p
		}
	}
	return ""
}

// resolveOrtLib picks the shared library path: an explicit path wins, then
// OrtLibEnv, then the bundled locations. An empty result with a nil error
// means onnxruntime_go should use its platform default.
func resolveOrtLib(explicit string, lookup func(string) (string, bool), baseDirs []string) (string, error) {
	if explicit != "" {
		if !pathExists(explicit) {
			return "", fmt.Errorf("onnxruntime: library %q not found", explicit)
		}
		return explicit, nil
	}
	if v, ok := lookup(OrtLibEnv); ok && v != "" {
		if !pathExists(v) {
			return "", fmt.Errorf("onnxruntime: %s=%q is not a file", OrtLibEnv, v)
		}
		return v, nil
	}
	return resolveBundledLib(baseDirs), nil
}
