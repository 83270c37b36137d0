package tracker

import (
	"context"
	"errors"

	"mangatrack/pkg/models"
)

// ErrNotFound marks a lookup for a manga that is not in storage. Callers
// map it to a not-found response instead of a generic failure.
var ErrNotFound = errors.New("manga not found")

// ErrUnknownSource marks an operation naming a source token that is not
// registered. It is raised before any network activity.
var ErrUnknownSource = errors.New("unknown source")

// Store is the storage collaborator. Implementations must make every write
// a conditional upsert keyed on the natural uniqueness constraints
// ((source_name, source_id) for bindings, (manga_id, source_name,
// source_chapter_id) for chapters) so that overlapping sync runs cannot
// create duplicates.
type Store interface {
	// FindBySource returns the manga bound to (sourceName, sourceID), or
	// ErrNotFound.
	FindBySource(ctx context.Context, sourceName, sourceID string) (*models.TrackedManga, error)
	CreateManga(ctx context.Context, m *models.TrackedManga) error
	SaveManga(ctx context.Context, m *models.TrackedManga) error
	// BulkUpsertChapters inserts or refreshes chapters by natural key.
	BulkUpsertChapters(ctx context.Context, chapters []models.TrackedChapter) error
	GetManga(ctx context.Context, id string) (*models.TrackedManga, error)
	ListManga(ctx context.Context, limit, offset int) ([]models.TrackedManga, error)
	// ChaptersByManga returns a manga's chapters ordered by number
	// ascending (numeric ordering, so "10" sorts after "9").
	ChaptersByManga(ctx context.Context, mangaID string) ([]models.TrackedChapter, error)
}
