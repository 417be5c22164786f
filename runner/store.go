package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// ReportStore persists execution reports
type ReportStore interface {
	Store(report *types.ExecutionReport) (string, error)
}

// jsonStore writes one JSON file per run id under a base directory
type jsonStore struct {
	dir string
}

// NewJSONStore creates a report store rooted at dir
func NewJSONStore(dir string) ReportStore {
	return &jsonStore{dir: dir}
}

// Store implements the ReportStore interface. It returns the path written.
func (s *jsonStore) Store(report *types.ExecutionReport) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("execution-%s.json", report.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

var _ ReportStore = (*jsonStore)(nil)
