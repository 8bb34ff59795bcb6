package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Archiver writes point-in-time JSON snapshots, e.g. legacy documents right
// before they are retired.
type Archiver struct {
	Dir string
}

func NewArchiver(dir string) *Archiver {
	return &Archiver{Dir: dir}
}

// SaveJSON writes data to "<prefix>-<uuid>.json" in the archive directory and
// returns the file name.
func (a *Archiver) SaveJSON(prefix string, data any) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", prefix, uuid.NewString())
	path := filepath.Join(a.Dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}

	zap.S().Named("audit").Infow("Archive written", "path", path, "bytes", len(jsonData))
	return filename, nil
}
