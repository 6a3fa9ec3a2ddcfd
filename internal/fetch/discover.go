package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	barePattern   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]()]+`)
	quizIDPattern = regexp.MustCompile(`with url\s*=\s*(https?://[^\s<>"']+)`)
)

// fileExtensions mark a URL as a downloadable data file.
var fileExtensions = []string{
	".pdf", ".csv", ".json", ".xlsx", ".txt", ".xml",
	".wav", ".opus", ".mp3", ".ogg", ".m4a", ".flac", ".aac", ".wma",
}

// dataPathHints mark a URL as a download endpoint regardless of extension.
var dataPathHints = []string{"/data/", "/files/", "/download/"}

// ExtractFileURLs finds downloadable file URLs in page content: href
// attributes from the markup plus bare URLs from the text, classified by
// extension or path hint. Relative URLs resolve against the page origin.
// Order is first-seen, deduplicated, so results are stable per fetch.
func ExtractFileURLs(content, pageURL string) []string {
	var candidates []string
	candidates = append(candidates, hrefValues(content)...)
	candidates = append(candidates, barePattern.FindAllString(content, -1)...)

	seen := make(map[string]bool)
	var out []string
	for _, raw := range candidates {
		candidate := strings.TrimSpace(raw)
		if candidate == "" || !isFileURL(candidate) {
			continue
		}
		resolved := ResolveURL(candidate, pageURL)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

func isFileURL(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, hint := range dataPathHints {
		if strings.Contains(u, hint) {
			return true
		}
	}
	return false
}

// hrefValues walks the markup collecting href attribute values.
func hrefValues(content string) []string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var hrefs []string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					hrefs = append(hrefs, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return hrefs
}

// ResolveURL makes a possibly-relative URL absolute against the page URL.
func ResolveURL(candidate, pageURL string) string {
	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		return candidate
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return candidate
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return candidate
	}
	return base.ResolveReference(ref).String()
}

// ExtractSubmitURL returns the first URL in the content containing
// "submit", or "" when none is present.
func ExtractSubmitURL(content string) string {
	for _, u := range barePattern.FindAllString(content, -1) {
		if strings.Contains(strings.ToLower(u), "submit") {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

// ExtractQuizIdentifier returns the quiz identifier the submission
// payload should carry. Pages can override the fetched URL with an
// explicit "with url = <literal>" instruction; otherwise the fetched
// URL is the identifier.
func ExtractQuizIdentifier(content, fetchedURL string) string {
	if m := quizIDPattern.FindStringSubmatch(content); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return fetchedURL
}
