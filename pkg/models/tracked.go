package models

import "time"

// LatestChapter is the cached "newest chapter we have seen" pointer kept on
// a TrackedManga so list views don't need a chapter query.
type LatestChapter struct {
	Number     string    `json:"number"`
	Title      string    `json:"title,omitempty"`
	SourceName string    `json:"source_name"`
	ObservedAt time.Time `json:"observed_at"`
}

// TrackedManga is the persisted aggregate. It is created on the first
// successful import from any source and updated on every import/update/sync
// afterwards. Sources holds one binding per external source known to mirror
// this manga; a given (source_name, source_id) pair may be bound to at most
// one TrackedManga.
type TrackedManga struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	AltTitles   []string       `json:"alt_titles,omitempty"`
	Author      string         `json:"author,omitempty"`
	Artist      string         `json:"artist,omitempty"`
	Description string         `json:"description,omitempty"`
	CoverURL    string         `json:"cover_url,omitempty"`
	Genres      []string       `json:"genres,omitempty"`
	Status      Status         `json:"status"`
	Sources     []SourceRef    `json:"sources"`
	Latest      *LatestChapter `json:"latest_chapter,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SourceFor returns the binding for the named source, if any.
func (m *TrackedManga) SourceFor(name string) (SourceRef, bool) {
	for _, ref := range m.Sources {
		if ref.SourceName == name {
			return ref, true
		}
	}
	return SourceRef{}, false
}

// BindSource adds or refreshes a binding. The bindings set stays ordered by
// first sighting; rebinding an existing source only updates its URL.
func (m *TrackedManga) BindSource(ref SourceRef) {
	for i, existing := range m.Sources {
		if existing.SourceName == ref.SourceName && existing.SourceID == ref.SourceID {
			m.Sources[i].URL = ref.URL
			return
		}
	}
	m.Sources = append(m.Sources, ref)
}

// TrackedChapter is a persisted chapter row owned by exactly one
// TrackedManga. The same chapter from the same source upserts on
// (manga_id, source_name, source_chapter_id); the same chapter number may
// appear more than once when different sources or languages provide it.
type TrackedChapter struct {
	ID              string     `json:"id"`
	MangaID         string     `json:"manga_id"`
	SourceName      string     `json:"source_name"`
	SourceChapterID string     `json:"source_chapter_id"`
	Number          string     `json:"number"`
	Title           string     `json:"title,omitempty"`
	Volume          string     `json:"volume,omitempty"`
	URL             string     `json:"url,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Pages           int        `json:"pages,omitempty"`
	Language        string     `json:"language,omitempty"`
	Group           string     `json:"group,omitempty"`
}
