// Package fetcher retrieves payslip document bytes from HTTP URLs or local
// paths. All failures carry a "fetch" prefix so the error classifier buckets
// them as network errors.
package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/monbulletin/payslip-cli/internal/resilience"
)

// Document is a fetched payslip file ready for text extraction or an AI call.
type Document struct {
	Data     []byte
	Name     string
	MimeType string
	Size     int64
	URL      string
}

// Fetcher retrieves document bytes from a URL or local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxSize caps the downloaded document size. Default: 32 MiB, the
	// largest PDF the AI provider accepts.
	MaxSize int64
	// RateLimit bounds requests per second against the document host.
	RateLimit rate.Limit
	Burst     int
}

// HTTPFetcher implements Fetcher over net/http with a shared rate limiter.
// URLs without an http(s) scheme are treated as local file paths, which the
// CLI uses for documents already on disk.
type HTTPFetcher struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

func New(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = 32 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "payslip-cli/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 10
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
	}
}

// Fetch downloads the document at rawURL, or reads it from disk when the URL
// has no http(s) scheme.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" {
		return f.fetchFile(rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch document")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetch document: unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxSize+1))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}
	if int64(len(data)) > f.opts.MaxSize {
		return nil, eris.Errorf("fetch document: %s exceeds %d byte limit", rawURL, f.opts.MaxSize)
	}

	doc := &Document{
		Data:     data,
		Name:     path.Base(u.Path),
		MimeType: mimeType(resp.Header.Get("Content-Type"), u.Path),
		Size:     int64(len(data)),
		URL:      rawURL,
	}
	zap.L().Debug("fetched document",
		zap.String("url", rawURL),
		zap.Int64("size", doc.Size),
		zap.String("mime_type", doc.MimeType),
	)
	return doc, nil
}

func (f *HTTPFetcher) fetchFile(p string) (*Document, error) {
	p = strings.TrimPrefix(p, "file://")
	info, err := os.Stat(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch local document %s", p)
	}
	if info.Size() > f.opts.MaxSize {
		return nil, eris.Errorf("fetch local document: %s exceeds %d byte limit", p, f.opts.MaxSize)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch local document %s", p)
	}
	return &Document{
		Data:     data,
		Name:     filepath.Base(p),
		MimeType: mimeType("", p),
		Size:     int64(len(data)),
		URL:      p,
	}, nil
}

func mimeType(contentType, p string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if ext := strings.ToLower(filepath.Ext(p)); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	return "application/pdf"
}
