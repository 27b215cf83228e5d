package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// FSObjectStore serves uploads from a local directory tree. Source
// references are paths relative to the root; traversal outside the root is
// rejected.
type FSObjectStore struct {
	root string
}

func NewFSObjectStore(root string) *FSObjectStore {
	return &FSObjectStore{root: root}
}

func (s *FSObjectStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, common.ValidationErrorf("source reference escapes root: %s", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		return nil, common.ProviderError("fetch source object", err)
	}
	return data, nil
}

// FSArtifactStore writes raw fragment dumps as JSON files for audit,
// one per job.
type FSArtifactStore struct {
	dir string
}

func NewFSArtifactStore(dir string) *FSArtifactStore {
	return &FSArtifactStore{dir: dir}
}

func (s *FSArtifactStore) SaveRaw(_ context.Context, jobID string, fragments []entity.TextFragment) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.Marshal(fragments)
	if err != nil {
		return "", fmt.Errorf("marshal fragments: %w", err)
	}
	name := fmt.Sprintf("extraction-%s.json", jobID)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
