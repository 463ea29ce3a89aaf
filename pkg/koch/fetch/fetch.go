// Package fetch downloads the pages listed in a URL table into documents.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// DateLayout is the layout of the date column
const DateLayout = "01/02/2006"

// DefaultUserAgent is sent with every request unless configured otherwise
const DefaultUserAgent = "Mozilla/5.0 (X11; U; Linux i686) Gecko/20071127 Firefox/2.0.0.11"

// Config describes the URL table and the HTTP client.
type Config struct {
	URLColumn       string        `yaml:"url_column"`
	DateColumn      string        `yaml:"date_column"`
	MetadataColumns []string      `yaml:"metadata_columns"`
	URLPattern      string        `yaml:"url_pattern"`
	UserAgent       string        `yaml:"user_agent"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxBytes        int64         `yaml:"max_bytes"`
}

// DefaultConfig returns the column names of the standard URL export.
func DefaultConfig() Config {
	return Config{
		URLColumn:  "URL for Content",
		DateColumn: "Date of Content Posting",
		UserAgent:  DefaultUserAgent,
		Timeout:    30 * time.Second,
		MaxBytes:   10 << 20,
	}
}

// Fetcher downloads pages. Failures are logged and yield empty content.
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

// NewFetcher creates a fetcher; a nil client gets one with cfg.Timeout.
func NewFetcher(cfg Config, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// Get returns the body of url decoded to UTF-8.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", internalerr.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", internalerr.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", internalerr.ErrFetch, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBytes > 0 {
		body = io.LimitReader(body, f.cfg.MaxBytes)
	}
	utf8, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: decode: %v", internalerr.ErrFetch, err)
	}
	data, err := io.ReadAll(utf8)
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", internalerr.ErrFetch, err)
	}
	return string(data), nil
}

// Document builds the document of one URL table row and downloads its page.
func (f *Fetcher) Document(ctx context.Context, url string, row pipeline.Row, emit pipeline.Emit[doc.Document]) error {
	d := doc.Document{URL: url}

	if raw := row[f.cfg.DateColumn]; raw != "" {
		ts, err := time.Parse(DateLayout, raw)
		if err != nil {
			f.logger.Warn("bad date", "url", url, "date", raw)
		} else {
			d.Timestamp = ts
		}
	}
	for _, col := range f.cfg.MetadataColumns {
		if v := row[col]; v != "" {
			if d.Metadata == nil {
				d.Metadata = make(map[string]string)
			}
			d.Metadata[col] = v
		}
	}

	page, err := f.Get(ctx, url)
	if err != nil {
		f.logger.Warn("fetch failed", "url", url, "err", err)
	} else {
		f.logger.Debug("fetched", "url", url, "bytes", len(page))
	}
	d.RawHTML = page
	return emit(url, d)
}

// Rows reads the URL table at path: the URL column keys each row, and the
// date and metadata columns are its value.
func Rows(path string, cfg Config) *pipeline.CSVReader {
	var cols []string
	for _, col := range append([]string{cfg.DateColumn}, cfg.MetadataColumns...) {
		if col != "" {
			cols = append(cols, col)
		}
	}
	return pipeline.NewCSVReader(path, cfg.URLColumn, cols...)
}

// NewPipeline rewrites, filters and fetches every URL read from r.
func NewPipeline(r pipeline.Reader[pipeline.Row], w pipeline.Writer[doc.Document], f *Fetcher) (*pipeline.Pipeline[pipeline.Row, doc.Document], error) {
	filter, err := Filter[pipeline.Row](f.cfg.URLPattern)
	if err != nil {
		return nil, err
	}
	urls := pipeline.Compose(pipeline.Compose(r, Rewrite[pipeline.Row]), filter)
	return pipeline.New(urls, w, f.Document, pipeline.WithName("fetch"), pipeline.WithLogger(f.logger)), nil
}
