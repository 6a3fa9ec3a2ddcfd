package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizsolver/internal/config"
)

func TestDownloadFilesPreservesOrderAndSkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.csv":
			w.Header().Set("Content-Type", "text/csv")
			fmt.Fprint(w, "x\n1\n")
		case "/b.json":
			w.WriteHeader(http.StatusNotFound)
		case "/c.txt":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "hello")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := NewFetcher(config.BrowserConfig{}, srv.Client())
	inputs := f.DownloadFiles(context.Background(), []string{
		srv.URL + "/a.csv",
		srv.URL + "/b.json",
		srv.URL + "/c.txt",
	})

	require.Len(t, inputs, 2, "the 404 must be skipped")
	assert.Equal(t, srv.URL+"/a.csv", inputs[0].Key)
	assert.Equal(t, "text/csv", inputs[0].ContentType)
	assert.Equal(t, "x\n1\n", string(inputs[0].Data))
	assert.Equal(t, srv.URL+"/c.txt", inputs[1].Key, "results keep discovery order despite concurrency")
}

func TestDownloadFilesEmptyInput(t *testing.T) {
	f := NewFetcher(config.BrowserConfig{}, nil)
	assert.Nil(t, f.DownloadFiles(context.Background(), nil))
}

func TestFetchPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/data/file.csv">data</a></body></html>`)
	}))
	defer srv.Close()

	f := NewFetcher(config.BrowserConfig{}, srv.Client())
	content, err := f.fetchPlain(context.Background(), srv.URL)
	require.NoError(t, err)

	// Without rendering, text and HTML are the same raw markup, which
	// still feeds URL extraction
	assert.Contains(t, content.HTML, "file.csv")
	urls := ExtractFileURLs(content.Combined(), srv.URL)
	assert.Equal(t, []string{srv.URL + "/data/file.csv"}, urls)
}

func TestCombined(t *testing.T) {
	p := &PageContent{Text: "question text", HTML: "<p>markup</p>"}
	c := p.Combined()
	assert.Contains(t, c, "question text")
	assert.Contains(t, c, "HTML:\n<p>markup</p>")
	assert.NotContains(t, c, "image(s)")

	p.Images = []PageImage{{DataURI: "data:image/png;base64,AA"}}
	assert.Contains(t, p.Combined(), "[Page contains 1 image(s)]")
}
