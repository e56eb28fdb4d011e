package app

import (
	"context"
	"testing"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func testConfig(t *testing.T) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "badger"
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Sources.Dir = ""
	cfg.LLM.Provider = common.LLMProviderNone
	cfg.Metrics.Enabled = true
	return cfg
}

func TestNew_PatternOnlyWithoutBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.LLMService)
	assert.NotNil(t, a.Metrics)
	assert.Equal(t, []string{"ACT-IFIB", "ACT-NOI", "ACT-RFI", "ACT-RFIP"}, a.Sources.Enabled())

	extractor, err := a.extractorFor(models.PostingTypeRFIP)
	require.NoError(t, err)
	assert.Equal(t, models.PostingTypeRFIP, extractor.PostingType())
}

func TestDefaultMode(t *testing.T) {
	cfg := testConfig(t)
	a := &App{Config: cfg}

	cfg.Reconciler.Mode = "full"
	assert.Equal(t, models.RunModeFull, a.DefaultMode())

	cfg.Reconciler.Mode = "sometimes"
	assert.Equal(t, models.RunModeIncremental, a.DefaultMode())
}

func TestRunSource_UnknownSource(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.RunSource(context.Background(), "ACT-TENDER", models.RunModeIncremental)
	assert.Error(t, err)
}

func TestRunSuccession_EmptyStore(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	result, err := a.RunSuccession(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.CheckedCount)
}
