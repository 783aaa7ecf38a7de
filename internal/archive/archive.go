// Package archive stores a copy of each completed dispatch. The file and S3
// backends write the summary as JSON and the rendered HTML on its own, under
// one folder per dispatch id; the DynamoDB backend keeps one item per
// dispatch.
package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ignite/promo-dispatch/internal/config"
	"github.com/ignite/promo-dispatch/internal/domain"
)

var (
	ErrNotFound  = errors.New("archive: dispatch not found")
	ErrInvalidID = errors.New("archive: invalid dispatch id")
)

const (
	summaryFile = "summary.json"
	contentFile = "content.html"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// Archiver persists dispatch summaries.
type Archiver interface {
	Save(ctx context.Context, s *domain.CampaignSummary) error
	Get(ctx context.Context, dispatchID string) (*domain.CampaignSummary, error)
}

// New builds the archiver selected by cfg.Type. It returns nil for "none".
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.LocalPath), nil
	case "s3":
		return NewS3FromConfig(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	case "dynamodb":
		return NewDynamoFromConfig(ctx, cfg.S3Region, cfg.DynamoTable, time.Duration(cfg.TTLDays)*24*time.Hour)
	default:
		return nil, fmt.Errorf("archive: unknown type %q", cfg.Type)
	}
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
