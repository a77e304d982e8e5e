package badger

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/dgraph-io/badger/v4"
)

// BadgerDB manages the Badger database connection.
type BadgerDB struct {
	db     *badger.DB
	logger *common.Logger
	config *config.BadgerConfig
}

// NewBadgerDB opens the database. With InMemory set nothing touches disk and
// Path is ignored.
func NewBadgerDB(logger *common.Logger, cfg *config.BadgerConfig) (*BadgerDB, error) {
	var options badger.Options
	if cfg.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		options = badger.DefaultOptions(cfg.Path)
	}
	options = options.WithLogger(&badgerLogger{logger: logger})

	logger.Debug().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("opening Badger database")

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", cfg.Path).Msg("Badger database initialized")

	return &BadgerDB{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// DB returns the underlying badger handle.
func (b *BadgerDB) DB() *badger.DB {
	return b.db
}

// Close closes the database connection.
func (b *BadgerDB) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// badgerLogger routes badger's internal messages into the portal logger.
// Info chatter from compaction is demoted to debug.
type badgerLogger struct {
	logger *common.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msg("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msg("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msg("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msg("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
