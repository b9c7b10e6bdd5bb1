package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// DefaultSourceURL lists the prebuilt web-llm models.
const DefaultSourceURL = "https://mlc.ai/models"

// Source yields engine ids in the order the external listing presents them.
type Source interface {
	Links(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed list of ids.
type StaticSource []string

// Links returns a copy of the list.
func (s StaticSource) Links(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// HTMLSource scrapes model links from the first table of an HTML page.
type HTMLSource struct {
	URL    string
	Client *http.Client
	// Selector defaults to "table a[href]".
	Selector string
}

// Links fetches the page and returns the last path segment of every
// matching link.
func (s HTMLSource) Links(ctx context.Context) ([]string, error) {
	url := s.URL
	if url == "" {
		url = DefaultSourceURL
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := s.Selector
	if sel == "" {
		sel = "table a[href]"
	}
	var out []string
	doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimRight(strings.TrimSpace(href), "/")
		if i := strings.LastIndex(href, "/"); i >= 0 {
			href = href[i+1:]
		}
		if href != "" {
			out = append(out, href)
		}
	})
	return out, nil
}

// Refresh builds a new catalog from src. Ids are grouped in iteration order,
// so a coordinate seen twice keeps the later id. Ids that do not follow the
// usual naming pattern are kept and logged at debug level.
func Refresh(ctx context.Context, src Source, log zerolog.Logger) (Catalog, error) {
	ids, err := src.Links(ctx)
	if err != nil {
		return nil, err
	}
	c := make(Catalog)
	for _, id := range ids {
		co, ok := ParseStrict(id)
		if !ok {
			log.Debug().Str("model_slug", id).Str("family", co.Family).Str("size", co.Size).
				Str("quantization", co.Quantization).Msg("ambiguous model id")
		}
		if prev, err := c.Resolve(co); err == nil && prev != id {
			log.Debug().Str("model_slug", id).Str("replaced", prev).Msg("catalog collision, keeping later id")
		}
		c.Put(co, id)
	}
	log.Info().Int("models", c.Len()).Msg("catalog refreshed")
	return c, nil
}
