// -----------------------------------------------------------------------
// Link discovery and document link resolution over rendered HTML
// -----------------------------------------------------------------------

package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// ExtractListingLinks returns the anchors of a listing page that belong to source.
// Links are resolved against pageURL, anchors without text are dropped and the
// result is deduplicated by URL keeping the first occurrence.
func ExtractListingLinks(html string, pageURL string, source *models.Source) ([]models.ListingLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", pageURL, err)
	}

	var links []models.ListingLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if shouldSkipLink(href) {
			return
		}

		resolved := resolveURL(href, baseURL)
		if resolved == "" || seen[resolved] {
			return
		}

		text := collapseWhitespace(s.Text())
		if text == "" {
			return
		}

		if !source.MatchesURL(resolved) {
			return
		}

		seen[resolved] = true
		links = append(links, models.ListingLink{URL: resolved, Text: text})
	})

	return links, nil
}

// FindDocumentLink locates the document of a posting page. The first match of
// selector pointing at a PDF wins; otherwise the first PDF anchor on the page.
func FindDocumentLink(html string, pageURL string, selector string) (*string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	find := func(sel string) *string {
		var found *string
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok || shouldSkipLink(href) {
				return true
			}
			resolved := resolveURL(href, baseURL)
			if resolved == "" || !isPDFLink(resolved) {
				return true
			}
			found = &resolved
			return false
		})
		return found
	}

	if selector != "" {
		if link := find(selector); link != nil {
			return link, nil
		}
	}
	return find("a[href]"), nil
}

// PageTitle returns the document title of rendered HTML
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return collapseWhitespace(doc.Find("title").First().Text())
}

func isPDFLink(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf")
}

// shouldSkipLink determines if a link should be skipped during extraction
func shouldSkipLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

// resolveURL resolves href against base and drops the fragment
func resolveURL(href string, base *url.URL) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
