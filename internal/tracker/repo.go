package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mangatrack/pkg/models"
)

// Repo is the sqlite-backed Store.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// mangaColumns returns the tracked_manga column list, optionally prefixed
// with a table alias.
func mangaColumns(alias string) string {
	cols := []string{"id", "title", "alt_titles", "author", "artist", "description", "cover_url", "genres", "status", "latest_chapter", "created_at", "updated_at"}
	if alias != "" {
		for i, c := range cols {
			cols[i] = alias + "." + c
		}
	}
	return strings.Join(cols, ", ")
}

func (r *Repo) FindBySource(ctx context.Context, sourceName, sourceID string) (*models.TrackedManga, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+mangaColumns("m")+`
		FROM tracked_manga m
		JOIN manga_sources s ON s.manga_id = m.id
		WHERE s.source_name = ? AND s.source_id = ?
	`, sourceName, sourceID)
	return r.scanManga(ctx, row)
}

func (r *Repo) GetManga(ctx context.Context, id string) (*models.TrackedManga, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+mangaColumns("")+`
		FROM tracked_manga
		WHERE id = ?
	`, id)
	return r.scanManga(ctx, row)
}

func (r *Repo) CreateManga(ctx context.Context, m *models.TrackedManga) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	altTitles, genres, latest, err := encodeMangaJSON(m)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tracked_manga
			(id, title, alt_titles, author, artist, description, cover_url, genres, status, latest_chapter, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Title, altTitles, m.Author, m.Artist, m.Description, m.CoverURL, genres, string(m.Status), latest, m.CreatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("insert manga %s: %w", m.ID, err)
	}

	if err := upsertSources(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) SaveManga(ctx context.Context, m *models.TrackedManga) error {
	m.UpdatedAt = time.Now().UTC()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	altTitles, genres, latest, err := encodeMangaJSON(m)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tracked_manga SET
			title = ?, alt_titles = ?, author = ?, artist = ?, description = ?,
			cover_url = ?, genres = ?, status = ?, latest_chapter = ?, updated_at = ?
		WHERE id = ?
	`, m.Title, altTitles, m.Author, m.Artist, m.Description, m.CoverURL, genres, string(m.Status), latest, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update manga %s: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := upsertSources(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) BulkUpsertChapters(ctx context.Context, chapters []models.TrackedChapter) error {
	if len(chapters) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracked_chapters
			(id, manga_id, source_name, source_chapter_id, number, title, volume, url, published_at, pages, language, scanlation_group)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(manga_id, source_name, source_chapter_id) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			volume = excluded.volume,
			url = excluded.url,
			published_at = excluded.published_at,
			pages = excluded.pages,
			language = excluded.language,
			scanlation_group = excluded.scanlation_group
	`)
	if err != nil {
		return fmt.Errorf("prepare chapter upsert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chapters {
		var publishedAt any
		if ch.PublishedAt != nil {
			publishedAt = ch.PublishedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.MangaID, ch.SourceName, ch.SourceChapterID,
			ch.Number, ch.Title, ch.Volume, ch.URL,
			publishedAt, ch.Pages, ch.Language, ch.Group,
		); err != nil {
			return fmt.Errorf("upsert chapter %s/%s: %w", ch.SourceName, ch.SourceChapterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) ListManga(ctx context.Context, limit, offset int) ([]models.TrackedManga, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+mangaColumns("")+`
		FROM tracked_manga
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrackedManga, 0, limit)
	for rows.Next() {
		m, err := scanMangaRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	for i := range out {
		if err := r.loadSources(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) ChaptersByManga(ctx context.Context, mangaID string) ([]models.TrackedChapter, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, manga_id, source_name, source_chapter_id, number, title, volume, url, published_at, pages, language, scanlation_group
		FROM tracked_chapters
		WHERE manga_id = ?
		ORDER BY CAST(number AS REAL) ASC, source_name ASC
	`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("chapters query: %w", err)
	}
	defer rows.Close()

	var out []models.TrackedChapter
	for rows.Next() {
		var (
			ch          models.TrackedChapter
			title       sql.NullString
			volume      sql.NullString
			chapterURL  sql.NullString
			publishedAt sql.NullTime
			language    sql.NullString
			group       sql.NullString
		)
		if err := rows.Scan(
			&ch.ID, &ch.MangaID, &ch.SourceName, &ch.SourceChapterID,
			&ch.Number, &title, &volume, &chapterURL,
			&publishedAt, &ch.Pages, &language, &group,
		); err != nil {
			return nil, fmt.Errorf("chapters scan: %w", err)
		}
		ch.Title = title.String
		ch.Volume = volume.String
		ch.URL = chapterURL.String
		ch.Language = language.String
		ch.Group = group.String
		if publishedAt.Valid {
			t := publishedAt.Time
			ch.PublishedAt = &t
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repo) scanManga(ctx context.Context, row *sql.Row) (*models.TrackedManga, error) {
	m, err := scanMangaRow(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadSources(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func scanMangaRow(row rowScanner) (*models.TrackedManga, error) {
	var (
		m             models.TrackedManga
		altTitlesJSON string
		author        sql.NullString
		artist        sql.NullString
		description   sql.NullString
		coverURL      sql.NullString
		genresJSON    string
		status        string
		latestJSON    sql.NullString
	)

	if err := row.Scan(
		&m.ID, &m.Title, &altTitlesJSON, &author, &artist, &description,
		&coverURL, &genresJSON, &status, &latestJSON, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan manga: %w", err)
	}

	m.Author = author.String
	m.Artist = artist.String
	m.Description = description.String
	m.CoverURL = coverURL.String
	m.Status = models.Status(status)
	_ = json.Unmarshal([]byte(altTitlesJSON), &m.AltTitles)
	_ = json.Unmarshal([]byte(genresJSON), &m.Genres)
	if latestJSON.Valid && latestJSON.String != "" {
		var latest models.LatestChapter
		if err := json.Unmarshal([]byte(latestJSON.String), &latest); err == nil {
			m.Latest = &latest
		}
	}
	return &m, nil
}

func (r *Repo) loadSources(ctx context.Context, m *models.TrackedManga) error {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT source_name, source_id, url
		FROM manga_sources
		WHERE manga_id = ?
		ORDER BY rowid ASC
	`, m.ID)
	if err != nil {
		return fmt.Errorf("sources query: %w", err)
	}
	defer rows.Close()

	m.Sources = m.Sources[:0]
	for rows.Next() {
		var ref models.SourceRef
		var refURL sql.NullString
		if err := rows.Scan(&ref.SourceName, &ref.SourceID, &refURL); err != nil {
			return fmt.Errorf("sources scan: %w", err)
		}
		ref.URL = refURL.String
		m.Sources = append(m.Sources, ref)
	}
	return rows.Err()
}

// upsertSources writes the bindings conditionally: a binding already owned
// by another manga is left alone, keeping the one-manga-per-identity
// invariant even when two imports race.
func upsertSources(ctx context.Context, tx *sql.Tx, m *models.TrackedManga) error {
	for _, ref := range m.Sources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO manga_sources (source_name, source_id, manga_id, url)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source_name, source_id) DO UPDATE SET
				url = excluded.url
			WHERE manga_sources.manga_id = excluded.manga_id
		`, ref.SourceName, ref.SourceID, m.ID, ref.URL); err != nil {
			return fmt.Errorf("upsert source %s/%s: %w", ref.SourceName, ref.SourceID, err)
		}
	}
	return nil
}

func encodeMangaJSON(m *models.TrackedManga) (altTitles, genres string, latest any, err error) {
	at, err := json.Marshal(sliceOrEmpty(m.AltTitles))
	if err != nil {
		return "", "", nil, fmt.Errorf("marshal alt titles: %w", err)
	}
	g, err := json.Marshal(sliceOrEmpty(m.Genres))
	if err != nil {
		return "", "", nil, fmt.Errorf("marshal genres: %w", err)
	}
	if m.Latest != nil {
		b, err := json.Marshal(m.Latest)
		if err != nil {
			return "", "", nil, fmt.Errorf("marshal latest chapter: %w", err)
		}
		latest = string(b)
	}
	return string(at), string(g), latest, nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
