package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/", "ifib-act-sact-25-97"},
		{"https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97", "ifib-act-sact-25-97"},
		{"https://www.act.nato.int/wp-content/uploads/2025/10/IFIB-ACT-SACT-25-97.pdf?ver=2", "IFIB-ACT-SACT-25-97.pdf"},
		{"/relative/path/file.pdf", "file.pdf"},
		{"", ""},
		{"https://example.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LastPathSegment(tt.input))
		})
	}
}

func TestPageEndingsDiffer(t *testing.T) {
	base := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"

	assert.False(t, PageEndingsDiffer(base, "https://www.act.nato.int/opportunities/contracting/IFIB-ACT-SACT-25-97"))
	assert.True(t, PageEndingsDiffer(base, "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97-amendment-1/"))
}

func TestCompareFingerprints(t *testing.T) {
	page := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"
	amendedPage := "https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97-amendment-1/"
	doc := "https://www.act.nato.int/wp-content/uploads/IFIB-25-97.pdf"
	newDoc := "https://www.act.nato.int/wp-content/uploads/IFIB-25-97-Amd1.pdf"

	tests := []struct {
		name         string
		observedPage string
		storedDoc    *string
		observedDoc  *string
		wantAmended  bool
		wantDegraded bool
	}{
		{"identical", page, strPtr(doc), strPtr(doc), false, false},
		{"document case only", page, strPtr(doc), strPtr("https://other.host/files/ifib-25-97.PDF"), false, false},
		{"document replaced", page, strPtr(doc), strPtr(newDoc), true, false},
		{"page slug changed", amendedPage, strPtr(doc), strPtr(doc), true, false},
		{"missing observed document", page, strPtr(doc), nil, false, true},
		{"missing stored document with new slug", amendedPage, nil, strPtr(doc), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompareFingerprints(page, tt.storedDoc, tt.observedPage, tt.observedDoc)
			assert.Equal(t, tt.wantAmended, result.Amended())
			assert.Equal(t, tt.wantDegraded, result.Degraded)
		})
	}
}
