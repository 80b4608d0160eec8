package publish

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type bundleFile struct {
	Name string
	Body string
}

// buildArchive packages the rendered pages and the shared stylesheet into a
// single zip, the downloadable site bundle for one publish version.
func buildArchive(files []bundleFile) ([]byte, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	for _, file := range files {
		entry, err := writer.Create(file.Name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", file.Name, err)
		}
		if _, err := entry.Write([]byte(file.Body)); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", file.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
