package fact

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxImages = 4

// ImageLookup finds illustration URLs for a place by scraping the
// Wikipedia page meta tags and infobox. Strictly best-effort: any
// failure returns nil.
type ImageLookup struct {
	base   string
	client *http.Client
}

func NewImageLookup() *ImageLookup {
	return &ImageLookup{
		base:   "https://en.wikipedia.org",
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Find returns up to 4 image URLs for the query.
func (l *ImageLookup) Find(ctx context.Context, query string) []string {
	// Special:Search redirects straight to the article on a good match
	uri := l.base + "/wiki/Special:Search?go=Go&search=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Wayfact/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil
	}

	d, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	var images []string
	seen := make(map[string]bool)

	add := func(src string) {
		if src == "" || len(images) >= maxImages {
			return
		}
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		if !strings.HasPrefix(src, "http") || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	}

	d.Find(`meta[property="og:image"]`).Each(func(i int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	d.Find(".infobox img").Each(func(i int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})

	return images
}
