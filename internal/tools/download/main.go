// Command download fetches the prebuilt QuickJS module image so it can be
// embedded into the sandbox package.
//
//	go run ./internal/tools/download sandbox/quickjs.wasm
//	go run ./internal/tools/download <url> sandbox/quickjs.wasm
//
// An existing output file is left untouched, so builds that already carry
// the image skip the network entirely. Gzip-compressed images are accepted
// as-is; the sandbox decompresses them at load time.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
)

const defaultImageURL = "https://github.com/caffeineduck/jsbox/releases/latest/download/quickjs.wasm.gz"

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

func main() {
	var url, output string
	switch len(os.Args) {
	case 2:
		url, output = defaultImageURL, os.Args[1]
	case 3:
		url, output = os.Args[1], os.Args[2]
	default:
		fmt.Fprintln(os.Stderr, "usage: download [url] <output>")
		os.Exit(1)
	}

	if _, err := os.Stat(output); err == nil {
		return
	}

	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "download failed: %s\n", resp.Status)
		os.Exit(1)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	gzipped := len(image) >= 2 && image[0] == 0x1f && image[1] == 0x8b
	if !gzipped && !bytes.HasPrefix(image, wasmMagic) {
		fmt.Fprintln(os.Stderr, "download failed: response is neither wasm nor gzip")
		os.Exit(1)
	}

	if err := os.WriteFile(output, image, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d bytes)\n", output, len(image))
}
