package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Source describes one issuing-body/posting-type pipeline
type Source struct {
	Name             string      `toml:"name" yaml:"name" json:"name" validate:"required"`
	IssuingBody      string      `toml:"issuing_body" yaml:"issuing_body" json:"issuing_body" validate:"required"`
	PostingType      PostingType `toml:"posting_type" yaml:"posting_type" json:"posting_type" validate:"required,oneof=NOI IFIB RFI RFIP"`
	ListingURL       string      `toml:"listing_url" yaml:"listing_url" json:"listing_url" validate:"required,url"`
	URLPattern       string      `toml:"url_pattern" yaml:"url_pattern" json:"url_pattern" validate:"required"`
	TypeFilter       string      `toml:"type_filter" yaml:"type_filter" json:"type_filter"`
	DocumentSelector string      `toml:"document_selector" yaml:"document_selector" json:"document_selector"`
	CodePattern      string      `toml:"code_pattern" yaml:"code_pattern" json:"code_pattern" validate:"required"`
	Enabled          bool        `toml:"enabled" yaml:"enabled" json:"enabled"`

	urlRegex  *regexp.Regexp
	codeRegex *regexp.Regexp
}

// DefaultDocumentSelector is the primary CSS heuristic for document links
const DefaultDocumentSelector = `a[target="_blank"][rel="noopener"]`

// Compile prepares the regular expressions of the source
func (s *Source) Compile() error {
	urlRegex, err := regexp.Compile(s.URLPattern)
	if err != nil {
		return fmt.Errorf("source %s: invalid url_pattern: %w", s.Name, err)
	}
	codeRegex, err := regexp.Compile("(?i)" + s.CodePattern)
	if err != nil {
		return fmt.Errorf("source %s: invalid code_pattern: %w", s.Name, err)
	}
	s.urlRegex = urlRegex
	s.codeRegex = codeRegex
	if s.DocumentSelector == "" {
		s.DocumentSelector = DefaultDocumentSelector
	}
	return nil
}

// MatchesURL reports whether a resolved link URL belongs to this source
func (s *Source) MatchesURL(u string) bool {
	if s.urlRegex == nil {
		if err := s.Compile(); err != nil {
			return false
		}
	}
	if !s.urlRegex.MatchString(u) {
		return false
	}
	if s.TypeFilter != "" && !strings.Contains(strings.ToLower(u), strings.ToLower(s.TypeFilter)) {
		return false
	}
	return true
}

// DeriveCode derives the business key from a page URL.
// The upper-cased full match of the code pattern is the key.
func (s *Source) DeriveCode(pageURL string) (string, bool) {
	if s.codeRegex == nil {
		if err := s.Compile(); err != nil {
			return "", false
		}
	}
	match := s.codeRegex.FindString(strings.ToLower(pageURL))
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

const actListingURL = "https://www.act.nato.int/opportunities/contracting/"
const actURLPattern = `https://www\.act\.nato\.int/opportunities/contracting/[^/?#]+/?$`

// DefaultSources returns the built-in ACT sources sharing one listing page
func DefaultSources() []*Source {
	build := func(t PostingType) *Source {
		lower := strings.ToLower(string(t))
		return &Source{
			Name:             "ACT-" + string(t),
			IssuingBody:      "ACT",
			PostingType:      t,
			ListingURL:       actListingURL,
			URLPattern:       actURLPattern,
			TypeFilter:       lower,
			DocumentSelector: DefaultDocumentSelector,
			CodePattern:      lower + `-act-sact-\d+-\d+`,
			Enabled:          true,
		}
	}

	return []*Source{
		build(PostingTypeIFIB),
		build(PostingTypeNOI),
		build(PostingTypeRFI),
		build(PostingTypeRFIP),
	}
}

// ListingLink is a candidate posting found on a listing page
type ListingLink struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// PageInfo is the result of resolving a posting page
type PageInfo struct {
	PageURL     string  `json:"page_url"`
	DocumentURL *string `json:"document_url,omitempty"`
	PageTitle   string  `json:"page_title"`
}

// RenderedPage is a page after client-side rendering
type RenderedPage struct {
	URL   string
	Title string
	HTML  string
}
