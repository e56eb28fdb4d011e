package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sp(s string) *string { return &s }

func TestPosting_SetFieldAndHash(t *testing.T) {
	p := &Posting{Code: "IFIB-ACT-SACT-25-97"}
	empty := p.ComputeContentHash()

	require.True(t, p.SetField(FieldName, sp("Cyber Range Support")))
	assert.Equal(t, "Cyber Range Support", *p.Name)
	assert.NotEqual(t, empty, p.ComputeContentHash())

	assert.False(t, p.SetField("unknown_field", sp("x")))

	// Hash is stable for equal content
	q := &Posting{Code: "other"}
	q.SetField(FieldName, sp("Cyber Range Support"))
	assert.Equal(t, p.ComputeContentHash(), q.ComputeContentHash())
}

func TestPosting_MergeChangedFields(t *testing.T) {
	p := &Posting{LastChangedFields: []string{"name"}}
	p.MergeChangedFields([]string{"bid_closing_date", "name"})
	assert.Equal(t, []string{"bid_closing_date", "name"}, p.LastChangedFields)

	p.MergeChangedFields(nil)
	assert.Equal(t, []string{"bid_closing_date", "name"}, p.LastChangedFields)
}

func TestCodeSuffix(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"NOI-ACT-SACT-26-16", "ACT-SACT-26-16"},
		{"IFIB-ACT-SACT-26-16", "ACT-SACT-26-16"},
		{"NOCODE", ""},
		{"TRAILING-", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeSuffix(tt.code))
		})
	}
}

func TestPosting_Clone(t *testing.T) {
	now := time.Now()
	p := &Posting{
		Code:                 "RFI-ACT-SACT-25-10",
		Name:                 sp("Original"),
		DocumentURL:          sp("https://example.com/a.pdf"),
		BidClosingDateParsed: &now,
		LastChangedFields:    []string{"name"},
	}

	c := p.Clone()
	*c.Name = "Changed"
	*c.DocumentURL = "https://example.com/b.pdf"
	c.LastChangedFields[0] = "summary"

	assert.Equal(t, "Original", *p.Name)
	assert.Equal(t, "https://example.com/a.pdf", *p.DocumentURL)
	assert.Equal(t, "name", p.LastChangedFields[0])
	assert.True(t, c.BidClosingDateParsed.Equal(now))
}

func TestSource_DeriveCodeAndMatch(t *testing.T) {
	sources := DefaultSources()
	require.Len(t, sources, 4)

	byType := map[PostingType]*Source{}
	for _, s := range sources {
		require.NoError(t, s.Compile())
		byType[s.PostingType] = s
	}

	ifib := byType[PostingTypeIFIB]
	code, ok := ifib.DeriveCode("https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97-amendment-1/")
	require.True(t, ok)
	assert.Equal(t, "IFIB-ACT-SACT-25-97", code)

	assert.True(t, ifib.MatchesURL("https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/"))
	assert.False(t, ifib.MatchesURL("https://www.act.nato.int/opportunities/contracting/noi-act-sact-26-16/"))
	assert.False(t, ifib.MatchesURL("https://www.act.nato.int/opportunities/contracting/ifib-act-sact-25-97/docs/file"))

	// RFIP links pass the RFI substring filter but never yield an RFI key
	rfi := byType[PostingTypeRFI]
	rfipURL := "https://www.act.nato.int/opportunities/contracting/rfip-act-sact-25-03/"
	assert.True(t, rfi.MatchesURL(rfipURL))
	_, ok = rfi.DeriveCode(rfipURL)
	assert.False(t, ok)

	code, ok = byType[PostingTypeRFIP].DeriveCode(rfipURL)
	require.True(t, ok)
	assert.Equal(t, "RFIP-ACT-SACT-25-03", code)
}

func TestRunResult_Finish(t *testing.T) {
	r := NewRunResult("run-1", "ACT-IFIB", RunModeIncremental)
	r.Finish(nil)
	assert.True(t, r.Success)
	assert.Nil(t, r.Error)
	assert.NotNil(t, r.New)
	assert.NotNil(t, r.Amendments)

	r2 := NewRunResult("run-2", "ACT-IFIB", RunModeFull)
	r2.Finish(assert.AnError)
	assert.False(t, r2.Success)
	require.NotNil(t, r2.Error)
	assert.Equal(t, assert.AnError.Error(), *r2.Error)
}
