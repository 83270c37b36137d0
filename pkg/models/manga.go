package models

import "time"

// Status is the canonical publication lifecycle of a manga.
type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusHiatus    Status = "hiatus"
	StatusCancelled Status = "cancelled"
)

// SourceRef identifies one record inside one external source's namespace,
// plus the canonical URL it was seen at. A tracked manga carries one
// SourceRef per source that mirrors it.
type SourceRef struct {
	SourceName string `json:"source_name"`
	SourceID   string `json:"source_id"`
	URL        string `json:"url,omitempty"`
}

// ScrapedManga is the normalized, internal form of a manga entry as one
// source reports it. All external sources are mapped into this structure
// first; it is never stored directly but merged into a TrackedManga.
type ScrapedManga struct {
	Title       string   `json:"title"`
	AltTitles   []string `json:"alt_titles,omitempty"`
	Author      string   `json:"author,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Status      Status   `json:"status"`
	SourceName  string   `json:"source_name"`
	SourceID    string   `json:"source_id"`
	URL         string   `json:"url"`
}

// ScrapedChapter is the normalized form of a single chapter as one source
// reports it. Number is a string so fractional chapters ("10.5") survive.
type ScrapedChapter struct {
	Number      string     `json:"number"`
	Title       string     `json:"title,omitempty"`
	Volume      string     `json:"volume,omitempty"`
	SourceName  string     `json:"source_name"`
	SourceID    string     `json:"source_id"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Pages       int        `json:"pages,omitempty"`
	Language    string     `json:"language,omitempty"`
	Group       string     `json:"group,omitempty"`
}

// SearchResult is a single hit from a source's search or recent-updates
// listing. SourceID is enough to fetch full details afterwards.
type SearchResult struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url,omitempty"`
	URL      string `json:"url"`
}
