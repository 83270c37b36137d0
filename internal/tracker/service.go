// Package tracker owns the durable manga catalog and the aggregation logic
// that reconciles it against the registered source adapters.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mangatrack/internal/source"
	"mangatrack/pkg/models"
)

// defaultLatestLimit bounds how many chapters UpdateManga pulls per source.
const defaultLatestLimit = 25

// Service coordinates the source adapters against storage. It is
// constructed explicitly and injected wherever needed; there is no
// process-wide instance.
type Service struct {
	store       Store
	sources     map[string]source.Source
	order       []string
	latestLimit int
	logger      *zap.Logger
}

// NewService registers the given adapters under their own names.
func NewService(store Store, logger *zap.Logger, sources ...source.Source) *Service {
	svc := &Service{
		store:       store,
		sources:     make(map[string]source.Source, len(sources)),
		latestLimit: defaultLatestLimit,
		logger:      logger.Named("tracker"),
	}
	for _, src := range sources {
		svc.sources[src.Name()] = src
		svc.order = append(svc.order, src.Name())
	}
	return svc
}

// SourceNames reports the registered sources in registration order.
func (s *Service) SourceNames() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

func (s *Service) source(name string) (source.Source, error) {
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// SearchAll fans the query out to every registered adapter concurrently and
// waits for all of them. A failing adapter contributes an empty list under
// its key; the call itself never fails.
func (s *Service) SearchAll(ctx context.Context, query string) map[string][]models.SearchResult {
	results := make(map[string][]models.SearchResult, len(s.sources))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, src := range s.sources {
		wg.Add(1)
		go func(name string, src source.Source) {
			defer wg.Done()
			list, err := src.Search(ctx, query)
			if err != nil {
				s.logger.Warn("search failed", zap.String("source", name), zap.Error(err))
				list = []models.SearchResult{}
			}
			mu.Lock()
			results[name] = list
			mu.Unlock()
		}(name, src)
	}

	wg.Wait()
	return results
}

// Search queries a single named source.
func (s *Service) Search(ctx context.Context, sourceName, query string) ([]models.SearchResult, error) {
	src, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	return src.Search(ctx, query)
}

// ImportManga fetches full details from one source and reconciles them into
// storage. If a manga is already bound to (sourceName, sourceID) its
// descriptive fields are overwritten with the fresh scrape (last write
// wins); otherwise a new tracked manga is created bound to exactly this
// source. All fetched chapters are bulk-upserted either way.
//
// Identity across sources is established only by explicit imports naming
// source and ID. Two independent imports of the same real-world title
// through two different sources create two tracked rows; the service never
// merges by title similarity.
func (s *Service) ImportManga(ctx context.Context, sourceName, sourceID string) (*models.TrackedManga, error) {
	src, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}

	scraped, chapters, err := src.GetDetails(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get details from %s: %w", sourceName, err)
	}

	ref := models.SourceRef{SourceName: sourceName, SourceID: sourceID, URL: scraped.URL}

	m, err := s.store.FindBySource(ctx, sourceName, sourceID)
	switch {
	case err == nil:
		applyScrape(m, scraped)
		m.BindSource(ref)
		setLatestFromListing(m, chapters)
		if err := s.store.SaveManga(ctx, m); err != nil {
			return nil, fmt.Errorf("save manga: %w", err)
		}
	case errorsIsNotFound(err):
		m = &models.TrackedManga{
			ID:      uuid.NewString(),
			Sources: []models.SourceRef{ref},
		}
		applyScrape(m, scraped)
		setLatestFromListing(m, chapters)
		if err := s.store.CreateManga(ctx, m); err != nil {
			return nil, fmt.Errorf("create manga: %w", err)
		}
	default:
		return nil, err
	}

	if err := s.store.BulkUpsertChapters(ctx, toTrackedChapters(m.ID, chapters)); err != nil {
		return nil, fmt.Errorf("upsert chapters: %w", err)
	}

	s.logger.Info("imported manga",
		zap.String("manga_id", m.ID),
		zap.String("source", sourceName),
		zap.String("source_id", sourceID),
		zap.Int("chapters", len(chapters)))
	return m, nil
}

// UpdateManga refreshes a tracked manga from every source it is bound to.
// A single source's failure is logged and skipped; the manga row is saved
// once at the end reflecting whatever succeeded.
func (s *Service) UpdateManga(ctx context.Context, id string) (*models.TrackedManga, error) {
	m, err := s.store.GetManga(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, ref := range m.Sources {
		src, err := s.source(ref.SourceName)
		if err != nil {
			s.logger.Warn("skipping unregistered source binding",
				zap.String("manga_id", m.ID), zap.String("source", ref.SourceName))
			continue
		}

		chapters, err := src.GetLatestChapters(ctx, ref.SourceID, s.latestLimit)
		if err != nil {
			s.logger.Warn("latest chapters failed, skipping source",
				zap.String("manga_id", m.ID), zap.String("source", ref.SourceName), zap.Error(err))
			continue
		}
		if len(chapters) == 0 {
			continue
		}

		if err := s.store.BulkUpsertChapters(ctx, toTrackedChapters(m.ID, chapters)); err != nil {
			s.logger.Warn("chapter upsert failed, skipping source",
				zap.String("manga_id", m.ID), zap.String("source", ref.SourceName), zap.Error(err))
			continue
		}

		for _, ch := range chapters {
			advanceLatest(m, ch)
		}
	}

	if err := s.store.SaveManga(ctx, m); err != nil {
		return nil, fmt.Errorf("save manga: %w", err)
	}
	return m, nil
}

// SyncResult summarizes one SyncRecentUpdates run.
type SyncResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// SyncRecentUpdates pulls a source's recent-updates listing and reconciles
// every entry: already-bound entries are refreshed, unknown ones are
// imported. Discovery and refresh are the same operation, differing only in
// whether the binding exists. One entry's failure never aborts the batch.
func (s *Service) SyncRecentUpdates(ctx context.Context, sourceName string, limit int) (SyncResult, error) {
	src, err := s.source(sourceName)
	if err != nil {
		return SyncResult{}, err
	}

	updates, err := src.GetRecentUpdates(ctx, limit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("recent updates from %s: %w", sourceName, err)
	}

	var res SyncResult
	for _, entry := range updates {
		existing, err := s.store.FindBySource(ctx, sourceName, entry.SourceID)
		switch {
		case err == nil:
			if _, err := s.UpdateManga(ctx, existing.ID); err != nil {
				s.logger.Warn("sync update failed",
					zap.String("source", sourceName), zap.String("source_id", entry.SourceID), zap.Error(err))
				res.Failed++
				continue
			}
			res.Updated++
		case errorsIsNotFound(err):
			if _, err := s.ImportManga(ctx, sourceName, entry.SourceID); err != nil {
				s.logger.Warn("sync import failed",
					zap.String("source", sourceName), zap.String("source_id", entry.SourceID), zap.Error(err))
				res.Failed++
				continue
			}
			res.Imported++
		default:
			s.logger.Warn("sync lookup failed",
				zap.String("source", sourceName), zap.String("source_id", entry.SourceID), zap.Error(err))
			res.Failed++
		}
	}

	s.logger.Info("sync finished",
		zap.String("source", sourceName),
		zap.Int("imported", res.Imported),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed))
	return res, nil
}

// List returns a page of tracked manga.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.TrackedManga, error) {
	return s.store.ListManga(ctx, limit, offset)
}

// GetWithChapters returns one tracked manga and its chapters in ascending
// number order.
func (s *Service) GetWithChapters(ctx context.Context, id string) (*models.TrackedManga, []models.TrackedChapter, error) {
	m, err := s.store.GetManga(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	chapters, err := s.store.ChaptersByManga(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return m, chapters, nil
}

// applyScrape overwrites a tracked manga's descriptive fields with a fresh
// scrape. Last write wins; stale fields are never merged back in.
func applyScrape(m *models.TrackedManga, scraped *models.ScrapedManga) {
	m.Title = scraped.Title
	m.AltTitles = scraped.AltTitles
	m.Author = scraped.Author
	m.Artist = scraped.Artist
	m.Description = scraped.Description
	m.CoverURL = scraped.CoverURL
	m.Genres = scraped.Genres
	m.Status = scraped.Status
}

// setLatestFromListing recomputes the cached pointer from the last element
// of a full details listing. Adapters return chapters ascending, so the
// last element is the newest; the service relies on that contract instead
// of re-deriving order.
func setLatestFromListing(m *models.TrackedManga, chapters []models.ScrapedChapter) {
	if len(chapters) == 0 {
		return
	}
	last := chapters[len(chapters)-1]
	m.Latest = &models.LatestChapter{
		Number:     last.Number,
		Title:      last.Title,
		SourceName: last.SourceName,
		ObservedAt: time.Now().UTC(),
	}
}

// advanceLatest moves the cached pointer forward only when the observed
// number is strictly numerically greater than the cached one. Non-numeric
// numbers never advance the pointer; adapters normalize before handing
// chapters over.
func advanceLatest(m *models.TrackedManga, ch models.ScrapedChapter) {
	if m.Latest == nil {
		m.Latest = &models.LatestChapter{
			Number:     ch.Number,
			Title:      ch.Title,
			SourceName: ch.SourceName,
			ObservedAt: time.Now().UTC(),
		}
		return
	}

	current, err1 := strconv.ParseFloat(m.Latest.Number, 64)
	observed, err2 := strconv.ParseFloat(ch.Number, 64)
	if err1 != nil || err2 != nil || observed <= current {
		return
	}

	m.Latest = &models.LatestChapter{
		Number:     ch.Number,
		Title:      ch.Title,
		SourceName: ch.SourceName,
		ObservedAt: time.Now().UTC(),
	}
}

func toTrackedChapters(mangaID string, chapters []models.ScrapedChapter) []models.TrackedChapter {
	out := make([]models.TrackedChapter, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, models.TrackedChapter{
			ID:              uuid.NewString(),
			MangaID:         mangaID,
			SourceName:      ch.SourceName,
			SourceChapterID: ch.SourceID,
			Number:          ch.Number,
			Title:           ch.Title,
			Volume:          ch.Volume,
			URL:             ch.URL,
			PublishedAt:     ch.PublishedAt,
			Pages:           ch.Pages,
			Language:        ch.Language,
			Group:           ch.Group,
		})
	}
	return out
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
