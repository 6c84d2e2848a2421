package sandbox

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// quickjs.wasm is the pre-initialized QuickJS snapshot: the engine plus its
// global bindings are already initialized, so instantiation skips engine
// startup entirely. Fetch it with internal/tools/download before building.
//
//go:embed quickjs.wasm
var embeddedModule []byte

var (
	defaultModuleOnce sync.Once
	defaultModule     []byte
)

// DefaultModule returns the built-in prebuilt module image. The artifact
// may be embedded gzip-compressed (the download tool fetches the .gz
// release asset verbatim), so it goes through the same transparent
// decompression as images loaded from disk.
func DefaultModule() []byte {
	defaultModuleOnce.Do(func() {
		defaultModule = imageBytes(embeddedModule)
	})
	return defaultModule
}

// imageBytes mirrors LoadModule's transparent decompression for the
// embedded artifact. A corrupt artifact is returned as-is and surfaces as
// ErrLoad at compile time.
func imageBytes(raw []byte) []byte {
	decoded, err := decompress(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// LoadModule reads a module image from disk. Gzip-compressed images are
// decompressed transparently, detected by magic bytes rather than file
// extension.
func LoadModule(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return decompress(raw)
}

func decompress(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrLoad, err)
	}
	defer zr.Close()
	decoded, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrLoad, err)
	}
	return decoded, nil
}
