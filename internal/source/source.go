// Package source implements the per-site adapters that feed the tracker:
// one adapter per external catalog, all satisfying the same capability
// contract so the aggregation layer never branches on a concrete type.
package source

import (
	"context"
	"net/http"
	"time"

	"mangatrack/pkg/models"
)

// Source is implemented by each external adapter. Implementations must
// acquire their own rate limiter before every request and are expected to
// return chapters in ascending number order.
//
// List-shaped calls (Search, GetLatestChapters, GetRecentUpdates) degrade to
// an empty result on failure so one broken source never poisons an
// aggregate operation. GetDetails is the one call allowed to return an
// error: the caller asked for a specific item and has no fallback.
type Source interface {
	Name() string
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	GetDetails(ctx context.Context, id string) (*models.ScrapedManga, []models.ScrapedChapter, error)
	GetLatestChapters(ctx context.Context, id string, limit int) ([]models.ScrapedChapter, error)
	GetRecentUpdates(ctx context.Context, limit int) ([]models.SearchResult, error)
}

// NewHTTPClient returns the tuned client shared by the adapters. Pooling is
// sized for scraping workloads with a handful of hosts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 20
	t.IdleConnTimeout = 30 * time.Second
	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}
