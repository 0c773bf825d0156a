package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	fetchTimeout = 10 * time.Second
	maxBodySize  = 5 << 20 // 5MB

	// itemsPerSite caps how many articles one site contributes per run.
	itemsPerSite = 5
)

// Site describes one scrape target. ItemClass selects the container
// elements holding one article each; the first heading inside is the title
// and the first link is the article URL.
type Site struct {
	Name      string
	URL       string
	ItemClass string
}

// Scraper fetches article listings from configured sites. Sites are
// fetched concurrently; a failing site contributes nothing and never fails
// the run.
type Scraper struct {
	sites      []Site
	httpClient *http.Client
	logger     *slog.Logger
}

// NewScraper creates a Scraper over the given sites.
func NewScraper(sites []Site) *Scraper {
	return &Scraper{
		sites:      sites,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     slog.Default(),
	}
}

// Fetch scrapes all sites and returns whatever was extracted. An empty
// result means every site failed or yielded nothing.
func (s *Scraper) Fetch(ctx context.Context) []Item {
	var mu sync.Mutex
	var items []Item

	g, ctx := errgroup.WithContext(ctx)
	for _, site := range s.sites {
		g.Go(func() error {
			found, err := s.fetchSite(ctx, site)
			if err != nil {
				s.logger.Warn("scrape failed", "site", site.Name, "error", err)
				return nil // absorbed: other sites keep going
			}
			mu.Lock()
			items = append(items, found...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return items
}

func (s *Scraper) fetchSite(ctx context.Context, site Site) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", site.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, site.URL)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	base, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing site url: %w", err)
	}

	var items []Item
	for _, node := range findByClass(doc, site.ItemClass) {
		if len(items) >= itemsPerSite {
			break
		}

		title := strings.TrimSpace(headingText(node))
		href := firstLink(node)
		if title == "" || href == "" {
			continue
		}

		link, err := base.Parse(href)
		if err != nil {
			continue
		}

		items = append(items, Item{
			Keyword: firstWord(title),
			Text:    "New article: " + title,
			Link:    link.String(),
		})
	}

	s.logger.Info("scraped site", "site", site.Name, "items", len(items))
	return items, nil
}

// firstWord returns the first whitespace-separated word, lowercased.
// It is the cheap keyword heuristic the knowledge base matches on.
func firstWord(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// findByClass walks the DOM and collects elements whose class attribute
// contains the given class name.
func findByClass(root *html.Node, class string) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			nodes = append(nodes, n)
			return // do not descend into a matched container
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return nodes
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// headingText returns the text of the first h1–h4 under n.
func headingText(n *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != "" {
			return
		}
		if node.Type == html.ElementNode {
			switch node.Data {
			case "h1", "h2", "h3", "h4":
				found = nodeText(node)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// firstLink returns the href of the first anchor under n.
func firstLink(n *html.Node) string {
	var found string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != "" {
			return
		}
		if node.Type == html.ElementNode && node.Data == "a" {
			for _, attr := range node.Attr {
				if attr.Key == "href" && attr.Val != "" {
					found = attr.Val
					return
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
