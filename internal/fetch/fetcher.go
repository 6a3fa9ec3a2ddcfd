// Package fetch renders quiz pages with headless Chrome, harvests page
// images, downloads attached files, and extracts URLs from page content.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"quizsolver/internal/config"
	"quizsolver/internal/logging"
)

// PageImage is an image harvested from a rendered page, wrapped as a
// base64 data URI.
type PageImage struct {
	DataURI   string
	MimeType  string
	AltText   string
	SizeBytes int
}

// PageContent is the rendered view of one quiz page.
type PageContent struct {
	Text   string // body innerText
	HTML   string // full document markup
	Images []PageImage
}

// Combined returns the text+HTML blob that question analysis and URL
// extraction operate on.
func (p *PageContent) Combined() string {
	content := p.Text + "\n\nHTML:\n" + p.HTML
	if len(p.Images) > 0 {
		content += fmt.Sprintf("\n\n[Page contains %d image(s)]", len(p.Images))
	}
	return content
}

// Fetcher owns one headless Chrome instance and an HTTP client for
// file downloads. Safe for sequential use within one chain run.
type Fetcher struct {
	cfg        config.BrowserConfig
	httpClient *http.Client

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewFetcher creates a fetcher. The browser launches lazily on first use.
func NewFetcher(cfg config.BrowserConfig, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{cfg: cfg, httpClient: httpClient}
}

// ensureBrowser launches and connects to Chrome on first use.
func (f *Fetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if _, err := f.browser.Version(); err == nil {
			return f.browser, nil
		}
		logging.FetchWarn("stale browser connection, relaunching")
		_ = f.browser.Close()
		f.browser = nil
	}

	launch := launcher.New().Headless(f.cfg.Headless)
	if f.cfg.Bin != "" {
		launch = launch.Bin(f.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	f.launcher = launch
	f.browser = browser
	logging.Fetch("browser connected (headless=%v)", f.cfg.Headless)
	return browser, nil
}

// FetchRendered loads a page in headless Chrome, waits for JS to settle,
// and returns the rendered text, HTML, and harvested images. When Chrome
// is unavailable it degrades to a plain HTTP GET.
func (f *Fetcher) FetchRendered(ctx context.Context, url string) (*PageContent, error) {
	timer := logging.StartTimer(logging.CategoryFetch, fmt.Sprintf("render %s", url))
	defer timer.Stop()

	browser, err := f.ensureBrowser()
	if err != nil {
		logging.FetchWarn("browser unavailable, falling back to plain HTTP: %v", err)
		return f.fetchPlain(ctx, url)
	}

	content, err := f.renderPage(ctx, browser, url)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (f *Fetcher) renderPage(ctx context.Context, browser *rod.Browser, url string) (*PageContent, error) {
	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)

	if err := page.Timeout(f.cfg.NavigationTimeout()).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Timeout(f.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	// Give client-side rendering a moment to settle
	select {
	case <-time.After(f.cfg.SettleDelay()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return nil, fmt.Errorf("read body text: %w", err)
	}
	text := res.Value.Str()

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	images := f.harvestImages(ctx, page, url)

	logging.Fetch("rendered %s: %d chars text, %d chars html, %d images",
		url, len(text), len(html), len(images))

	return &PageContent{Text: text, HTML: html, Images: images}, nil
}

// harvestImages collects every <img> on the page as a data URI: inline
// data URIs directly, http(s) and root-relative sources by download.
func (f *Fetcher) harvestImages(ctx context.Context, page *rod.Page, pageURL string) []PageImage {
	elements, err := page.Elements("img")
	if err != nil {
		logging.FetchWarn("image scan failed: %v", err)
		return nil
	}

	var images []PageImage
	for idx, el := range elements {
		src, err := el.Attribute("src")
		if err != nil || src == nil || *src == "" {
			continue
		}
		alt := fmt.Sprintf("image_%d", idx)
		if altAttr, err := el.Attribute("alt"); err == nil && altAttr != nil && *altAttr != "" {
			alt = *altAttr
		}

		source := *src
		switch {
		case strings.HasPrefix(source, "data:"):
			images = append(images, PageImage{
				DataURI:   source,
				MimeType:  mimeFromDataURI(source),
				AltText:   alt,
				SizeBytes: len(source),
			})
			logging.FetchDebug("inline image %d: %s", idx, alt)

		case strings.HasPrefix(source, "http") || strings.HasPrefix(source, "/"):
			resolved := ResolveURL(source, pageURL)
			img, err := f.downloadImage(ctx, resolved, alt)
			if err != nil {
				logging.FetchWarn("failed to download image %s: %v", resolved, err)
				continue
			}
			images = append(images, img)
			logging.FetchDebug("downloaded image %d: %s", idx, alt)
		}
	}
	return images
}

func (f *Fetcher) downloadImage(ctx context.Context, url, alt string) (PageImage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return PageImage{}, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return PageImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageImage{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return PageImage{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "image") {
		contentType = "image/png"
	}
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return PageImage{
		DataURI:   uri,
		MimeType:  contentType,
		AltText:   alt,
		SizeBytes: len(data),
	}, nil
}

// fetchPlain retrieves the page without rendering. JS-built pages lose
// their text, but URL extraction still works on the raw markup.
func (f *Fetcher) fetchPlain(ctx context.Context, url string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	html := string(body)
	return &PageContent{Text: html, HTML: html}, nil
}

// Close shuts down the browser.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Cleanup()
		f.launcher = nil
	}
	return err
}

func mimeFromDataURI(uri string) string {
	rest := strings.TrimPrefix(uri, "data:")
	if idx := strings.IndexAny(rest, ";,"); idx >= 0 {
		return rest[:idx]
	}
	return "image/png"
}
