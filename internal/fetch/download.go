package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"quizsolver/internal/logging"
	"quizsolver/internal/material"
)

// maxFileBytes caps any single downloaded file.
const maxFileBytes = 50 << 20

// downloadConcurrency bounds parallel file downloads per page.
const downloadConcurrency = 4

// DownloadFiles fetches every URL concurrently and returns the decodable
// inputs in input order. Individual failures are logged and skipped so
// one bad file never blocks the rest.
func (f *Fetcher) DownloadFiles(ctx context.Context, urls []string) []material.Input {
	if len(urls) == 0 {
		return nil
	}

	results := make([]*material.Input, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			in, err := f.downloadFile(gctx, u)
			if err != nil {
				logging.FetchWarn("download failed for %s: %v", u, err)
				return nil // isolate per-file failures
			}
			results[i] = in
			return nil
		})
	}
	_ = g.Wait()

	var out []material.Input
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	logging.Fetch("downloaded %d/%d files", len(out), len(urls))
	return out
}

func (f *Fetcher) downloadFile(ctx context.Context, url string) (*material.Input, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return nil, err
	}

	return &material.Input{
		Key:         url,
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
