package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// WriteZSTJSON marshals v to JSON and writes it zstd-compressed to path,
// creating parent directories as needed. Used for the call-graph map and
// any other artifact the pipeline wants to reload without re-deriving.
func WriteZSTJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: marshal: %w", err)
	}
	return WriteZST(path, data)
}

// WriteZST zstd-compresses data and writes it to path.
func WriteZST(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", path, err)
	}
	defer f.Close()

	w, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("artifact: zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("artifact: zstd write: %w", err)
	}
	return w.Close()
}

// ReadZSTJSON reads a zstd-compressed JSON file written by WriteZSTJSON
// and unmarshals it into v.
func ReadZSTJSON(path string, v interface{}) error {
	data, err := ReadZST(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifact: unmarshal %s: %w", path, err)
	}
	return nil
}

// ReadZST reads and decompresses a zstd file.
func ReadZST(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("artifact: zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("artifact: zstd decode %s: %w", path, err)
	}
	return data, nil
}
