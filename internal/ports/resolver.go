package ports

import (
	"context"

	"github.com/billaspace/anonxmusic/internal/domain"
)

// TrackResolver resolves a URL or free-text query into track metadata and a
// retrievable media locator. Failures are typed: domain.ErrTrackNotFound,
// domain.ErrTrackUnsupported, or *domain.FloodWaitError for rate limits.
type TrackResolver interface {
	Resolve(ctx context.Context, query string) (domain.Track, error)
}
