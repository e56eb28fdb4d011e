package badger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB owns the embedded posting database
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// arborLogger routes badger's internal log lines into arbor
type arborLogger struct {
	logger arbor.ILogger
}

func trimLine(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

func (l arborLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Str("component", "badger").Msg(trimLine(format, args...))
}

func (l arborLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Str("component", "badger").Msg(trimLine(format, args...))
}

// Infof is demoted to debug; badger reports every compaction at info
func (l arborLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Str("component", "badger").Msg(trimLine(format, args...))
}

func (l arborLogger) Debugf(string, ...interface{}) {}

var _ badger.Logger = arborLogger{}

// NewBadgerDB opens (creating if needed) the posting database at config.Path
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.Path == "" {
		return nil, errors.New("storage.badger.path is required")
	}

	if config.ResetOnStartup {
		logger.Warn().Str("path", config.Path).Msg("Resetting posting database (reset_on_startup=true)")
		if err := os.RemoveAll(config.Path); err != nil {
			return nil, fmt.Errorf("failed to reset posting database: %w", err)
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create posting database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(config.Path).WithLogger(arborLogger{logger: logger})

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open posting database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Posting database opened")

	return &BadgerDB{
		store:  store,
		logger: logger,
		path:   config.Path,
	}, nil
}

// Store returns the badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close reclaims value-log space and closes the database
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}

	reclaimed := 0
	for reclaimed < 10 {
		if err := b.store.Badger().RunValueLogGC(0.5); err != nil {
			break
		}
		reclaimed++
	}
	if reclaimed > 0 && b.logger != nil {
		b.logger.Debug().Str("path", b.path).Int("files", reclaimed).Msg("Value log compacted")
	}

	return b.store.Close()
}
