package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/sidpol/config"
)

// ErrNoCSVLink means the dataset page has no usable CSV anchor.
var ErrNoCSVLink = errors.New("acquire: no CSV link on dataset page")

// WritePathValidator confines the final file to allowed directories.
type WritePathValidator interface {
	ValidateWritePath(path string) (string, error)
}

// Fetcher downloads the newest published CSV from the open data portal.
type Fetcher struct {
	Client    *http.Client
	PageURL   string
	UserAgent string
	Dir       string
	Pattern   string
	Validator WritePathValidator
	Logger    zerolog.Logger
}

// Result describes a completed download.
type Result struct {
	URL     string   `json:"url"`
	Path    string   `json:"path"`
	Bytes   int64    `json:"bytes"`
	Removed []string `json:"removed,omitempty"`
}

// New builds a Fetcher writing into dir.
func New(cfg config.AcquireConfig, dir, pattern string, validator WritePathValidator, logger zerolog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultDownloadTimeout
	}
	if pattern == "" {
		pattern = config.DefaultSourcePattern
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		PageURL:   cfg.PageURL,
		UserAgent: cfg.UserAgent,
		Dir:       dir,
		Pattern:   pattern,
		Validator: validator,
		Logger:    logger.With().Str("component", "acquire").Logger(),
	}
}

func (f *Fetcher) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", accept)
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("acquire: GET %s: %s", target, resp.Status)
	}
	return resp, nil
}

// FindCSVURL fetches the dataset page and resolves the best CSV link against it.
func (f *Fetcher) FindCSVURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultPageFetchTimeout)
	defer cancel()

	resp, err := f.get(ctx, f.PageURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", fmt.Errorf("acquire: fetch page: %w", err)
	}
	defer resp.Body.Close()

	links, err := CSVLinks(resp.Body)
	if err != nil {
		return "", fmt.Errorf("acquire: parse page: %w", err)
	}
	best, ok := BestLink(links)
	if !ok || strings.TrimSpace(best.Href) == "" {
		return "", ErrNoCSVLink
	}
	base, err := url.Parse(f.PageURL)
	if err != nil {
		return "", fmt.Errorf("acquire: page url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(best.Href))
	if err != nil {
		return "", fmt.Errorf("acquire: link %q: %w", best.Href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Download fetches the best CSV into a temporary file, removes older dataset
// files matching the pattern and renames the new file into place. On failure
// the previous files are left untouched.
func (f *Fetcher) Download(ctx context.Context) (Result, error) {
	var res Result
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return res, fmt.Errorf("acquire: data dir: %w", err)
	}
	csvURL, err := f.FindCSVURL(ctx)
	if err != nil {
		return res, err
	}
	res.URL = csvURL
	f.Logger.Info().Ctx(ctx).Str("url", csvURL).Msg("downloading dataset")

	resp, err := f.get(ctx, csvURL, "text/csv,*/*;q=0.8")
	if err != nil {
		return res, fmt.Errorf("acquire: download: %w", err)
	}
	defer resp.Body.Close()

	final := filepath.Join(f.Dir, FilenameFromContentDisposition(resp.Header.Get("Content-Disposition")))
	if f.Validator != nil {
		safe, err := f.Validator.ValidateWritePath(final)
		if err != nil {
			return res, fmt.Errorf("acquire: target %s: %w", final, err)
		}
		final = safe
	}

	tmp, err := os.CreateTemp(f.Dir, fmt.Sprintf("temp_%d_*.csv", time.Now().Unix()))
	if err != nil {
		return res, fmt.Errorf("acquire: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return res, fmt.Errorf("acquire: write temp file: %w", err)
	}
	res.Bytes = n

	old, _ := filepath.Glob(filepath.Join(f.Dir, f.Pattern))
	for _, p := range old {
		if p == tmpPath {
			continue
		}
		if err := os.Remove(p); err != nil {
			f.Logger.Warn().Ctx(ctx).Err(err).Str("path", p).Msg("could not remove old dataset")
			continue
		}
		res.Removed = append(res.Removed, filepath.Base(p))
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return res, fmt.Errorf("acquire: rename: %w", err)
	}
	keep = true
	res.Path = final
	f.Logger.Info().Ctx(ctx).Str("path", final).Int64("bytes", n).Int("removed", len(res.Removed)).Msg("dataset updated")
	return res, nil
}

// FilenameFromContentDisposition extracts a safe base file name, falling back
// to the default dataset name.
func FilenameFromContentDisposition(cd string) string {
	name := ""
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		name = params["filename"]
	} else if _, after, ok := strings.Cut(cd, "filename="); ok {
		name = after
	}
	name = strings.Trim(name, "\"'; ")
	name = filepath.Base(filepath.FromSlash(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return config.DefaultFallbackSourceFilename
	}
	return name
}
