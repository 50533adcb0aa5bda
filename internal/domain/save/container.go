package save

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
)

// minContainerSize is the smallest byte count a zip archive with one member
// can occupy; anything at or below it cannot be a valid save container.
const minContainerSize = 30

// UnpackContainer extracts every member of the save's zip container. It
// returns member name -> raw member bytes (version head byte + ciphertext).
func UnpackContainer(blob []byte) (map[string][]byte, error) {
	if len(blob) <= minContainerSize {
		return nil, fmt.Errorf("%w: container of %d bytes is too small", ErrDecompression, len(blob))
	}
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	members := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open member %q: %v", ErrDecompression, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read member %q: %v", ErrDecompression, f.Name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("%w: close member %q: %v", ErrDecompression, f.Name, closeErr)
		}
		members[f.Name] = data
	}
	return members, nil
}

// packContainer builds the zip container for Encode. Members are written in
// sorted name order so the output is deterministic.
func packContainer(members map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("%w: create member %q: %v", ErrDecompression, name, err)
		}
		if _, err := w.Write(members[name]); err != nil {
			return nil, fmt.Errorf("%w: write member %q: %v", ErrDecompression, name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalize container: %v", ErrDecompression, err)
	}
	return buf.Bytes(), nil
}
