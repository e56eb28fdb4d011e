package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestNewBadgerDB_RequiresPath(t *testing.T) {
	_, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{})
	assert.Error(t, err)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "postings")
	require.NoError(t, os.MkdirAll(dir, 0755))
	stale := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: dir, ResetOnStartup: true})
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	assert.NotNil(t, db.Store())
}
