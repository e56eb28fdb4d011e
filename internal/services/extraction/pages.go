package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// pageMarkerRegex matches the page boundary written by the text extractor
var pageMarkerRegex = regexp.MustCompile(`(?i)---\s*page\s+\d+\s*---`)

// SplitPages splits page-marked text into page bodies in document order.
// Text without markers is cut into charsPerPage-sized pieces instead.
// Whitespace-only pages are dropped; page bodies are otherwise left untouched
// so joining them reproduces the text without its markers.
func SplitPages(text string, charsPerPage int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if !pageMarkerRegex.MatchString(text) {
		return splitFixed(text, charsPerPage)
	}

	parts := pageMarkerRegex.Split(text, -1)
	pages := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, part)
	}
	return pages
}

func splitFixed(text string, charsPerPage int) []string {
	if charsPerPage <= 0 {
		charsPerPage = 3000
	}

	runes := []rune(text)
	pages := make([]string, 0, len(runes)/charsPerPage+1)
	for start := 0; start < len(runes); start += charsPerPage {
		end := start + charsPerPage
		if end > len(runes) {
			end = len(runes)
		}
		page := string(runes[start:end])
		if strings.TrimSpace(page) == "" {
			continue
		}
		pages = append(pages, page)
	}
	return pages
}

// Chunk is a group of consecutive pages sent to the backend in one call
type Chunk struct {
	FirstPage int // 1-based
	LastPage  int
	Text      string
}

// PageRange describes the chunk for prompts and logs
func (c Chunk) PageRange() string {
	if c.FirstPage == c.LastPage {
		return "page " + strconv.Itoa(c.FirstPage)
	}
	return "pages " + strconv.Itoa(c.FirstPage) + "-" + strconv.Itoa(c.LastPage)
}

// ChunkPages groups pages into chunks of at most size pages
func ChunkPages(pages []string, size int) []Chunk {
	if size <= 0 {
		size = 5
	}

	chunks := make([]Chunk, 0, (len(pages)+size-1)/size)
	for start := 0; start < len(pages); start += size {
		end := start + size
		if end > len(pages) {
			end = len(pages)
		}

		trimmed := make([]string, 0, end-start)
		for _, p := range pages[start:end] {
			trimmed = append(trimmed, strings.TrimSpace(p))
		}

		chunks = append(chunks, Chunk{
			FirstPage: start + 1,
			LastPage:  end,
			Text:      strings.Join(trimmed, "\n\n"),
		})
	}
	return chunks
}
