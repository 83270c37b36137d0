package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mangatrack/pkg/models"
)

const defaultBaseURL = "http://localhost:8080/api"

type mangaListResponse struct {
	Limit int                   `json:"limit"`
	Skip  int                   `json:"skip"`
	Items []models.TrackedManga `json:"items"`
}

type mangaDetailResponse struct {
	Manga    models.TrackedManga     `json:"manga"`
	Chapters []models.TrackedChapter `json:"chapters"`
}

func main() {
	global := flag.NewFlagSet("mangatrack", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 30 * time.Second}

	switch cmd {
	case "sources":
		handleSources(ctx, client, *baseURL)
	case "search":
		handleSearch(ctx, client, *baseURL, args[1:])
	case "import":
		handleImport(ctx, client, *baseURL, args[1:])
	case "manga":
		handleManga(ctx, client, *baseURL, sub, args[2:])
	case "sync":
		handleSync(ctx, client, *baseURL, args[1:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleSources(ctx context.Context, client *http.Client, baseURL string) {
	var resp map[string]any
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/sources", nil, &resp); err != nil {
		log.Fatalf("sources failed: %v", err)
	}
	printJSON(resp)
}

func handleSearch(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("q", "", "search query")
	source := fs.String("source", "", "limit to one source")
	_ = fs.Parse(args)
	if *query == "" {
		log.Fatal("search query is required")
	}

	u, err := url.Parse(baseURL + "/search")
	if err != nil {
		log.Fatalf("invalid base url: %v", err)
	}
	qv := u.Query()
	qv.Set("q", *query)
	if *source != "" {
		qv.Set("source", *source)
	}
	u.RawQuery = qv.Encode()

	var resp map[string]any
	if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
		log.Fatalf("search failed: %v", err)
	}
	printJSON(resp)
}

func handleImport(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("source", "", "source name")
	id := fs.String("id", "", "source-side manga id")
	_ = fs.Parse(args)
	if *source == "" || *id == "" {
		log.Fatal("source and id are required")
	}

	payload := map[string]string{"source": *source, "source_id": *id}
	var resp models.TrackedManga
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/imports", payload, &resp); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	printJSON(resp)
}

func handleManga(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "list":
		fs := flag.NewFlagSet("manga list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		skip := fs.Int("skip", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/manga")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("skip", fmt.Sprintf("%d", *skip))
		u.RawQuery = qv.Encode()

		var resp mangaListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("manga show", flag.ExitOnError)
		id := fs.String("id", "", "manga id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("manga id is required")
		}

		var resp mangaDetailResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/manga/"+url.PathEscape(*id), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "update":
		fs := flag.NewFlagSet("manga update", flag.ExitOnError)
		id := fs.String("id", "", "manga id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("manga id is required")
		}

		var resp models.TrackedManga
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/manga/"+url.PathEscape(*id)+"/update", nil, &resp); err != nil {
			log.Fatalf("update failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: mangatrack manga <list|show|update>")
	}
}

func handleSync(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	source := fs.String("source", "", "source name")
	limit := fs.Int("limit", 20, "recent entries to scan")
	_ = fs.Parse(args)
	if *source == "" {
		log.Fatal("source is required")
	}

	endpoint := fmt.Sprintf("%s/sources/%s/sync?limit=%d", baseURL, url.PathEscape(*source), *limit)
	var resp map[string]any
	if err := doJSON(ctx, client, http.MethodPost, endpoint, nil, &resp); err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	printJSON(resp)
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/manga.json", "output JSON path")
		limit := fs.Int("limit", 200, "max titles to export")
		_ = fs.Parse(args)

		items, err := fetchManga(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("exported %d titles to %s", len(items), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/manga.csv", "output CSV path")
		limit := fs.Int("limit", 200, "max titles to export")
		_ = fs.Parse(args)

		items, err := fetchManga(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeCSV(*out, items); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("exported %d titles to %s", len(items), *out)
	default:
		log.Fatal("usage: mangatrack export <json|csv>")
	}
}

func fetchManga(ctx context.Context, client *http.Client, baseURL string, limit int) ([]models.TrackedManga, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var out []models.TrackedManga
	skip := 0
	for len(out) < limit {
		pageSize := 50
		if remaining := limit - len(out); remaining < pageSize {
			pageSize = remaining
		}
		u, err := url.Parse(baseURL + "/manga")
		if err != nil {
			return nil, err
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", pageSize))
		qv.Set("skip", fmt.Sprintf("%d", skip))
		u.RawQuery = qv.Encode()

		var resp mangaListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		out = append(out, resp.Items...)
		skip += len(resp.Items)
		if len(resp.Items) < pageSize {
			break
		}
	}

	return out, nil
}

func writeJSON(path string, items []models.TrackedManga) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.TrackedManga) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"id", "title", "author", "status", "latest_chapter", "sources", "genres", "cover_url",
	}); err != nil {
		return err
	}
	for _, item := range items {
		latest := ""
		if item.Latest != nil {
			latest = item.Latest.Number
		}
		var sources []string
		for _, ref := range item.Sources {
			sources = append(sources, ref.SourceName+":"+ref.SourceID)
		}
		if err := writer.Write([]string{
			item.ID,
			item.Title,
			item.Author,
			string(item.Status),
			latest,
			strings.Join(sources, ";"),
			strings.Join(item.Genres, ","),
			item.CoverURL,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func printUsage() {
	fmt.Println("mangatrack <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  sources")
	fmt.Println("  search -q <query> [-source name]")
	fmt.Println("  import -source <name> -id <source id>")
	fmt.Println("  manga list|show|update")
	fmt.Println("  sync -source <name> [-limit n]")
	fmt.Println("  export json|csv")
}
