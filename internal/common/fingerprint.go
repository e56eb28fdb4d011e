// -----------------------------------------------------------------------
// URL fingerprints - page slug and document filename comparison
// -----------------------------------------------------------------------

package common

import (
	"net/url"
	"path"
	"strings"
)

// FingerprintResult describes how two observations of the same posting compare
type FingerprintResult struct {
	PageEndingChanged   bool
	DocumentNameChanged bool
	// Degraded is set when a document URL was missing on either side and only
	// the page endings could be compared.
	Degraded bool
}

// Amended reports whether either fingerprint differs
func (r FingerprintResult) Amended() bool {
	return r.PageEndingChanged || r.DocumentNameChanged
}

// LastPathSegment returns the final path segment of a URL with any trailing slash removed.
// Query strings and fragments are ignored. Unparseable input is treated as a plain path.
func LastPathSegment(rawURL string) string {
	p := strings.TrimSpace(rawURL)
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// PageEndingsDiffer compares the last path segments of two page URLs, case-insensitively
func PageEndingsDiffer(storedURL, observedURL string) bool {
	return !strings.EqualFold(LastPathSegment(storedURL), LastPathSegment(observedURL))
}

// DocumentNamesDiffer compares the filenames of two document URLs, case-insensitively
func DocumentNamesDiffer(storedURL, observedURL string) bool {
	return !strings.EqualFold(LastPathSegment(storedURL), LastPathSegment(observedURL))
}

// CompareFingerprints compares a stored page/document pair against a freshly observed pair.
// A nil document URL on either side disables the filename check.
func CompareFingerprints(storedPage string, storedDoc *string, observedPage string, observedDoc *string) FingerprintResult {
	result := FingerprintResult{
		PageEndingChanged: PageEndingsDiffer(storedPage, observedPage),
	}

	if storedDoc == nil || observedDoc == nil || *storedDoc == "" || *observedDoc == "" {
		result.Degraded = true
		return result
	}

	result.DocumentNameChanged = DocumentNamesDiffer(*storedDoc, *observedDoc)
	return result
}
