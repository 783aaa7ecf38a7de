package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ignite/promo-dispatch/internal/domain"
)

// Local writes archives under a directory on disk.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) Save(_ context.Context, s *domain.CampaignSummary) error {
	if err := checkID(s.DispatchID); err != nil {
		return err
	}
	dir := filepath.Join(l.root, s.DispatchID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(dir, summaryFile))
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, contentFile), []byte(s.RenderedContent), 0644)
}

func (l *Local) Get(_ context.Context, dispatchID string) (*domain.CampaignSummary, error) {
	if err := checkID(dispatchID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.root, dispatchID, summaryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s domain.CampaignSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
