package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_BuiltInSources(t *testing.T) {
	registry, err := Load(&common.SourcesConfig{Dir: filepath.Join(t.TempDir(), "missing")}, arbor.NewLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"ACT-IFIB", "ACT-NOI", "ACT-RFI", "ACT-RFIP"}, registry.Enabled())

	source, err := registry.Get("ACT-NOI")
	require.NoError(t, err)
	assert.Equal(t, models.PostingTypeNOI, source.PostingType)
	assert.True(t, source.MatchesURL("https://www.act.nato.int/opportunities/contracting/noi-act-sact-25-16/"))
}

func TestLoad_FromFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "ncia.toml", `
[[sources]]
name = "NCIA-IFIB"
issuing_body = "NCIA"
posting_type = "IFIB"
listing_url = "https://www.ncia.nato.int/business/procurement"
url_pattern = 'https://www\.ncia\.nato\.int/business/procurement/[^/]+$'
code_pattern = 'ifib-ncia-\d+-\d+'
enabled = true
`)

	writeFile(t, dir, "override.yaml", `
sources:
  - name: ACT-RFI
    issuing_body: ACT
    posting_type: RFI
    listing_url: https://www.act.nato.int/opportunities/contracting/
    url_pattern: 'https://www\.act\.nato\.int/opportunities/contracting/[^/?#]+/?$'
    type_filter: rfi
    code_pattern: 'rfi-act-sact-\d+-\d+'
    enabled: false
`)

	writeFile(t, dir, "broken.toml", `
[[sources]]
name = "BROKEN"
posting_type = "TENDER"
`)

	writeFile(t, dir, "README.md", "not a source")

	registry, err := Load(&common.SourcesConfig{Dir: dir}, arbor.NewLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"ACT-IFIB", "ACT-NOI", "ACT-RFI", "ACT-RFIP", "NCIA-IFIB"}, registry.Names())
	assert.Equal(t, []string{"ACT-IFIB", "ACT-NOI", "ACT-RFIP", "NCIA-IFIB"}, registry.Enabled())

	ncia, err := registry.Get("NCIA-IFIB")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDocumentSelector, ncia.DocumentSelector)
	code, ok := ncia.DeriveCode("https://www.ncia.nato.int/business/procurement/IFIB-NCIA-25-04")
	require.True(t, ok)
	assert.Equal(t, "IFIB-NCIA-25-04", code)

	_, err = registry.Get("BROKEN")
	assert.Error(t, err)
}

func TestLoad_EnabledList(t *testing.T) {
	registry, err := Load(&common.SourcesConfig{Enabled: []string{"ACT-NOI"}}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACT-NOI"}, registry.Enabled())

	_, err = Load(&common.SourcesConfig{Enabled: []string{"ACT-TENDER"}}, arbor.NewLogger())
	assert.Error(t, err)
}
