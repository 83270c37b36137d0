package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"mangatrack/pkg/models"
)

// Selectors lists the candidate CSS selectors for each extraction, tried in
// order until one yields at least a match. Site markup drifts over time, so
// these live as configuration data instead of constants buried in code; a
// site change should mean a config change, not a code change.
type Selectors struct {
	SearchRows  []string `mapstructure:"search_rows"`
	RecentRows  []string `mapstructure:"recent_rows"`
	Title       []string `mapstructure:"title"`
	Author      []string `mapstructure:"author"`
	Description []string `mapstructure:"description"`
	Cover       []string `mapstructure:"cover"`
	Genres      []string `mapstructure:"genres"`
	Status      []string `mapstructure:"status"`
	ChapterRows []string `mapstructure:"chapter_rows"`
}

// DefaultSelectors covers the markup conventions common to the usual manga
// reader themes.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchRows:  []string{"div.search-story-item", "div.story_item", "div.list-truyen-item-wrap"},
		RecentRows:  []string{"div.content-genres-item", "div.list-truyen-item-wrap", "div.update_item"},
		Title:       []string{"div.story-info-right h1", "h1.title-top", "ul.manga-info-text h1"},
		Author:      []string{"table.variations-tableInfo a.a-h", "ul.manga-info-text li:nth-child(2) a"},
		Description: []string{"div.panel-story-info-description", "div#noidungm", "div#contentBox"},
		Cover:       []string{"span.info-image img", "div.manga-info-pic img"},
		Genres:      []string{"table.variations-tableInfo a.a-h[href*='genre']", "ul.manga-info-text li.genres a"},
		Status:      []string{"table.variations-tableInfo td.table-value", "ul.manga-info-text li:nth-child(3)"},
		ChapterRows: []string{"ul.row-content-chapter li", "div.chapter-list div.row"},
	}
}

// WebScanConfig configures a markup-scraping adapter instance.
type WebScanConfig struct {
	Name      string
	BaseURL   string
	Delay     time.Duration
	Timeout   time.Duration
	Retries   int
	Selectors *Selectors // nil means DefaultSelectors
}

// WebScan is the markup adapter. Entity IDs are the last non-empty path
// segment of a source URL; the series page for an ID lives at
// {base}/manga/{id}. That convention is part of this adapter, not inferred.
type WebScan struct {
	cfg     WebScanConfig
	sel     Selectors
	client  *http.Client
	limiter *Limiter
	logger  *zap.Logger
}

// NewWebScan builds the adapter with its own private rate limiter.
func NewWebScan(cfg WebScanConfig, client *http.Client, logger *zap.Logger) *WebScan {
	sel := DefaultSelectors()
	if cfg.Selectors != nil {
		sel = *cfg.Selectors
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &WebScan{
		cfg:     cfg,
		sel:     sel,
		client:  client,
		limiter: NewLimiter(cfg.Delay),
		logger:  logger.Named(cfg.Name),
	}
}

func (s *WebScan) Name() string { return s.cfg.Name }

// Search tries the primary search endpoint and, if it yields nothing usable,
// one alternate query-string convention before giving up with an empty
// result.
func (s *WebScan) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	endpoints := []string{
		s.cfg.BaseURL + "/search?q=" + url.QueryEscape(query),
		s.cfg.BaseURL + "/?s=" + url.QueryEscape(query),
	}

	for _, endpoint := range endpoints {
		doc, err := s.getDocument(ctx, endpoint)
		if err != nil {
			s.logger.Warn("search endpoint failed", zap.String("url", endpoint), zap.Error(err))
			continue
		}
		rows := firstMatch(doc, s.sel.SearchRows)
		if rows == nil {
			continue
		}
		return s.rowsToResults(rows), nil
	}
	return []models.SearchResult{}, nil
}

// GetDetails scrapes the series page. Fetch failure propagates; extraction
// misses degrade field by field.
func (s *WebScan) GetDetails(ctx context.Context, id string) (*models.ScrapedManga, []models.ScrapedChapter, error) {
	pageURL := s.seriesURL(id)
	doc, err := s.getDocument(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: details %s: %w", s.cfg.Name, id, err)
	}

	manga := &models.ScrapedManga{
		Title:       firstText(doc, s.sel.Title),
		Author:      firstText(doc, s.sel.Author),
		Description: firstText(doc, s.sel.Description),
		CoverURL:    s.absoluteURL(firstAttr(doc, s.sel.Cover, "src")),
		Status:      NormalizeStatus(firstText(doc, s.sel.Status)),
		SourceName:  s.cfg.Name,
		SourceID:    id,
		URL:         pageURL,
	}
	if manga.Title == "" {
		return nil, nil, fmt.Errorf("%s: details %s: no title matched", s.cfg.Name, id)
	}

	if genres := firstMatch(doc, s.sel.Genres); genres != nil {
		genres.Each(func(_ int, sel *goquery.Selection) {
			if g := strings.TrimSpace(sel.Text()); g != "" {
				manga.Genres = appendIfMissing(manga.Genres, g)
			}
		})
	}

	return manga, s.extractChapters(doc), nil
}

// GetLatestChapters re-scrapes the series page and keeps only the newest
// chapters. Failures degrade to an empty result.
func (s *WebScan) GetLatestChapters(ctx context.Context, id string, limit int) ([]models.ScrapedChapter, error) {
	doc, err := s.getDocument(ctx, s.seriesURL(id))
	if err != nil {
		s.logger.Warn("latest chapters failed", zap.String("id", id), zap.Error(err))
		return []models.ScrapedChapter{}, nil
	}

	chapters := s.extractChapters(doc)
	if limit > 0 && len(chapters) > limit {
		chapters = chapters[len(chapters)-limit:]
	}
	return chapters, nil
}

// GetRecentUpdates scrapes the latest-updates listing. Failures degrade to
// an empty result.
func (s *WebScan) GetRecentUpdates(ctx context.Context, limit int) ([]models.SearchResult, error) {
	doc, err := s.getDocument(ctx, s.cfg.BaseURL+"/latest")
	if err != nil {
		s.logger.Warn("recent updates failed", zap.Error(err))
		return []models.SearchResult{}, nil
	}

	rows := firstMatch(doc, s.sel.RecentRows)
	if rows == nil {
		return []models.SearchResult{}, nil
	}

	results := s.rowsToResults(rows)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *WebScan) seriesURL(id string) string {
	return s.cfg.BaseURL + "/manga/" + id
}

func (s *WebScan) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := Fetch(ctx, s.client, pageURL, FetchOptions{
		Timeout:    s.cfg.Timeout,
		MaxRetries: s.cfg.Retries,
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// rowsToResults maps listing rows to search results. Rows without a usable
// link are skipped, never reported as errors.
func (s *WebScan) rowsToResults(rows *goquery.Selection) []models.SearchResult {
	var results []models.SearchResult
	rows.Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := s.absoluteURL(href)

		title := strings.TrimSpace(link.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if title == "" {
			return
		}

		cover := ""
		if img := row.Find("img").First(); img.Length() > 0 {
			cover = s.absoluteURL(img.AttrOr("src", ""))
		}

		results = append(results, models.SearchResult{
			SourceID: idFromURL(abs),
			Title:    title,
			CoverURL: cover,
			URL:      abs,
		})
	})
	return results
}

// extractChapters reads the chapter listing. Sites list newest first; the
// adapter contract is ascending order, so rows are reversed.
func (s *WebScan) extractChapters(doc *goquery.Document) []models.ScrapedChapter {
	rows := firstMatch(doc, s.sel.ChapterRows)
	if rows == nil {
		return nil
	}

	var chapters []models.ScrapedChapter
	rows.Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := s.absoluteURL(href)
		label := strings.TrimSpace(link.Text())

		chapters = append(chapters, models.ScrapedChapter{
			Number:     NormalizeChapterNumber(label),
			Title:      label,
			SourceName: s.cfg.Name,
			SourceID:   idFromURL(abs),
			URL:        abs,
		})
	})

	for i, j := 0, len(chapters)-1; i < j; i, j = i+1, j-1 {
		chapters[i], chapters[j] = chapters[j], chapters[i]
	}
	return chapters
}

// absoluteURL rewrites the three relative forms sites emit
// (protocol-relative, root-relative, bare relative) against the adapter
// base. Absolute URLs pass through unchanged.
func (s *WebScan) absoluteURL(raw string) string {
	if raw == "" {
		return ""
	}
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return raw
	}
	switch {
	case strings.Contains(raw, "://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return base.Scheme + ":" + raw
	case strings.HasPrefix(raw, "/"):
		return base.Scheme + "://" + base.Host + raw
	default:
		return base.Scheme + "://" + base.Host + "/" + raw
	}
}

// idFromURL derives an entity ID from the last non-empty path segment.
func idFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// firstMatch returns the selection of the first selector in the chain that
// matches at least one node, or nil when none do. A miss is steady-state
// for scraping, never an error.
func firstMatch(doc *goquery.Document, chain []string) *goquery.Selection {
	for _, selector := range chain {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func firstText(doc *goquery.Document, chain []string) string {
	if sel := firstMatch(doc, chain); sel != nil {
		return strings.TrimSpace(sel.First().Text())
	}
	return ""
}

func firstAttr(doc *goquery.Document, chain []string, attr string) string {
	if sel := firstMatch(doc, chain); sel != nil {
		return strings.TrimSpace(sel.First().AttrOr(attr, ""))
	}
	return ""
}
