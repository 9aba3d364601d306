package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// ProjectZip packs every file into a zip archive. Binary files stored as
// data URLs are decoded back to their raw bytes; everything else is written
// verbatim.
func ProjectZip(files []types.FileNode) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.Name, err)
		}

		data := []byte(f.Content)
		if f.IsBinary {
			if idx := strings.Index(f.Content, ","); idx >= 0 {
				decoded, err := base64.StdEncoding.DecodeString(f.Content[idx+1:])
				if err != nil {
					return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
				}
				data = decoded
			}
		}

		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip: %w", err)
	}

	logging.Export("ProjectZip: packed %d files into %d bytes", len(files), buf.Len())
	return buf.Bytes(), nil
}
