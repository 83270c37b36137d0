package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"mangatrack/pkg/models"
)

const (
	mangadexName     = "mangadex"
	mangadexSiteBase = "https://mangadex.org"
	mangadexCoverURL = "https://uploads.mangadex.org/covers/%s/%s"

	// unknownTitle is the hard fallback when no localization is present.
	// Downstream identity matching depends on titles being stable, so the
	// localization fallback order (en, then ja, then anything) is a
	// contract, not a cosmetic choice.
	unknownTitle = "Unknown Title"
)

// MangaDexConfig configures the MangaDex adapter.
type MangaDexConfig struct {
	BaseURL  string        // API base, e.g. https://api.mangadex.org
	Delay    time.Duration // minimum spacing between requests
	Timeout  time.Duration // per-attempt fetch timeout
	Retries  int           // attempts per request
	PageSize int           // feed pagination size; defaults to 500
}

// MangaDex is the typed-API adapter. Entity IDs are MangaDex UUIDs taken
// straight from the API.
type MangaDex struct {
	cfg     MangaDexConfig
	client  *http.Client
	limiter *Limiter
	logger  *zap.Logger
}

// NewMangaDex builds the adapter with its own private rate limiter.
func NewMangaDex(cfg MangaDexConfig, client *http.Client, logger *zap.Logger) *MangaDex {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mangadex.org"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &MangaDex{
		cfg:     cfg,
		client:  client,
		limiter: NewLimiter(cfg.Delay),
		logger:  logger.Named(mangadexName),
	}
}

func (s *MangaDex) Name() string { return mangadexName }

// mdManga mirrors the manga object shape of the MangaDex API.
type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string   `json:"title"`
		AltTitles   []map[string]string `json:"altTitles"`
		Description map[string]string   `json:"description"`
		Status      string              `json:"status"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			Name     string `json:"name"`
			FileName string `json:"fileName"`
		} `json:"attributes"`
	} `json:"relationships"`
}

type mdMangaList struct {
	Data []mdManga `json:"data"`
}

type mdMangaEntity struct {
	Data mdManga `json:"data"`
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter            string     `json:"chapter"`
		Title              string     `json:"title"`
		Volume             string     `json:"volume"`
		Pages              int        `json:"pages"`
		TranslatedLanguage string     `json:"translatedLanguage"`
		PublishAt          *time.Time `json:"publishAt"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"relationships"`
}

type mdChapterList struct {
	Data []mdChapter `json:"data"`
}

// Search queries the title endpoint. Failures degrade to an empty result.
func (s *MangaDex) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	q := url.Values{}
	q.Set("title", query)
	q.Set("limit", "20")
	q.Add("includes[]", "cover_art")

	var list mdMangaList
	if err := s.getJSON(ctx, "/manga", q, &list); err != nil {
		s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return []models.SearchResult{}, nil
	}

	results := make([]models.SearchResult, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		results = append(results, s.toSearchResult(m))
	}
	return results, nil
}

// GetDetails fetches the manga entity plus its full chapter feed. This is
// the one adapter call that propagates failure: the caller named one
// specific entity and an empty answer would be a lie.
func (s *MangaDex) GetDetails(ctx context.Context, id string) (*models.ScrapedManga, []models.ScrapedChapter, error) {
	q := url.Values{}
	q.Add("includes[]", "author")
	q.Add("includes[]", "artist")
	q.Add("includes[]", "cover_art")

	var entity mdMangaEntity
	if err := s.getJSON(ctx, "/manga/"+id, q, &entity); err != nil {
		return nil, nil, fmt.Errorf("mangadex: details %s: %w", id, err)
	}
	if entity.Data.ID == "" {
		return nil, nil, fmt.Errorf("mangadex: details %s: empty payload", id)
	}

	manga := s.toScrapedManga(entity.Data)
	chapters := s.fetchAllChapters(ctx, id)
	return manga, chapters, nil
}

// fetchAllChapters walks the feed endpoint in increasing offset order until
// a page comes back short. A failed page stops the walk and whatever was
// accumulated so far is returned rather than failing the whole listing.
func (s *MangaDex) fetchAllChapters(ctx context.Context, id string) []models.ScrapedChapter {
	var all []models.ScrapedChapter
	offset := 0

	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprintf("%d", s.cfg.PageSize))
		q.Set("offset", fmt.Sprintf("%d", offset))
		q.Set("order[chapter]", "asc")

		var page mdChapterList
		if err := s.getJSON(ctx, "/manga/"+id+"/feed", q, &page); err != nil {
			s.logger.Warn("chapter feed page failed, returning partial listing",
				zap.String("manga_id", id), zap.Int("offset", offset), zap.Error(err))
			return all
		}

		for _, ch := range page.Data {
			all = append(all, s.toScrapedChapter(ch))
		}

		if len(page.Data) < s.cfg.PageSize {
			return all
		}
		offset += s.cfg.PageSize
	}
}

// GetLatestChapters returns the newest chapters, ascending. Failures
// degrade to an empty result.
func (s *MangaDex) GetLatestChapters(ctx context.Context, id string, limit int) ([]models.ScrapedChapter, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("order[chapter]", "desc")

	var list mdChapterList
	if err := s.getJSON(ctx, "/manga/"+id+"/feed", q, &list); err != nil {
		s.logger.Warn("latest chapters failed", zap.String("manga_id", id), zap.Error(err))
		return []models.ScrapedChapter{}, nil
	}

	chapters := make([]models.ScrapedChapter, 0, len(list.Data))
	for i := len(list.Data) - 1; i >= 0; i-- { // flip desc to asc
		chapters = append(chapters, s.toScrapedChapter(list.Data[i]))
	}
	return chapters, nil
}

// GetRecentUpdates lists manga ordered by most recent chapter upload.
// Failures degrade to an empty result.
func (s *MangaDex) GetRecentUpdates(ctx context.Context, limit int) ([]models.SearchResult, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("order[latestUploadedChapter]", "desc")
	q.Add("includes[]", "cover_art")

	var list mdMangaList
	if err := s.getJSON(ctx, "/manga", q, &list); err != nil {
		s.logger.Warn("recent updates failed", zap.Error(err))
		return []models.SearchResult{}, nil
	}

	results := make([]models.SearchResult, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		results = append(results, s.toSearchResult(m))
	}
	return results, nil
}

func (s *MangaDex) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	u := s.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	body, err := Fetch(ctx, s.client, u, FetchOptions{
		Timeout:    s.cfg.Timeout,
		MaxRetries: s.cfg.Retries,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (s *MangaDex) toSearchResult(m mdManga) models.SearchResult {
	return models.SearchResult{
		SourceID: m.ID,
		Title:    pickLocalized(m.Attributes.Title),
		CoverURL: coverFor(m),
		URL:      mangadexSiteBase + "/title/" + m.ID,
	}
}

func (s *MangaDex) toScrapedManga(m mdManga) *models.ScrapedManga {
	author := ""
	artist := ""
	for _, rel := range m.Relationships {
		switch rel.Type {
		case "author":
			if author == "" {
				author = rel.Attributes.Name
			}
		case "artist":
			if artist == "" {
				artist = rel.Attributes.Name
			}
		}
	}

	title := pickLocalized(m.Attributes.Title)
	altTitles := make([]string, 0, len(m.Attributes.AltTitles))
	for _, alt := range m.Attributes.AltTitles {
		if at := pickLocalized(alt); at != unknownTitle && at != title {
			altTitles = appendIfMissing(altTitles, at)
		}
	}

	desc := ""
	if d := pickLocalized(m.Attributes.Description); d != unknownTitle {
		desc = d
	}

	return &models.ScrapedManga{
		Title:       title,
		AltTitles:   altTitles,
		Author:      author,
		Artist:      artist,
		Description: desc,
		CoverURL:    coverFor(m),
		Status:      NormalizeStatus(m.Attributes.Status),
		SourceName:  mangadexName,
		SourceID:    m.ID,
		URL:         mangadexSiteBase + "/title/" + m.ID,
	}
}

func (s *MangaDex) toScrapedChapter(ch mdChapter) models.ScrapedChapter {
	group := ""
	for _, rel := range ch.Relationships {
		if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
			group = rel.Attributes.Name
			break
		}
	}

	return models.ScrapedChapter{
		Number:      NormalizeChapterNumber(ch.Attributes.Chapter),
		Title:       ch.Attributes.Title,
		Volume:      ch.Attributes.Volume,
		SourceName:  mangadexName,
		SourceID:    ch.ID,
		URL:         mangadexSiteBase + "/chapter/" + ch.ID,
		PublishedAt: ch.Attributes.PublishAt,
		Pages:       ch.Attributes.Pages,
		Language:    ch.Attributes.TranslatedLanguage,
		Group:       group,
	}
}

func coverFor(m mdManga) string {
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return fmt.Sprintf(mangadexCoverURL, m.ID, rel.Attributes.FileName)
		}
	}
	return ""
}

// pickLocalized selects a value from a localization map: English first,
// then Japanese, then whatever is present, then the unknown sentinel.
func pickLocalized(m map[string]string) string {
	if v := m["en"]; v != "" {
		return v
	}
	if v := m["ja"]; v != "" {
		return v
	}
	for _, v := range m {
		if v != "" {
			return v
		}
	}
	return unknownTitle
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}
