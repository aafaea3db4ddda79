package orchestrator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
)

// Workspace owns the directory where connectors write their result files.
// Every file is scoped to a single job.
type Workspace struct {
	dir string
}

// NewWorkspace creates dir if needed
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		return nil, errors.New("workspace directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the result file of source for a job
func (w *Workspace) Path(source domain.Source, jobID uuid.UUID) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_results_%s.json", source, jobID))
}

// Cleanup removes every artifact of the job. Missing files are not an error.
func (w *Workspace) Cleanup(jobID uuid.UUID) error {
	var errs []error
	for _, source := range []domain.Source{domain.SourceA, domain.SourceB} {
		err := os.Remove(w.Path(source, jobID))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
