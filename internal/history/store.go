// Package history journals the terminal outcome of every write to a local
// sqlite database.
package history

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
	"github.com/quantumauth-io/nexuslend-client/internal/orchestrator"
)

const defaultListLimit = 100

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirectoryPerm); err != nil {
			return nil, errors.Wrap(err, "create history dir")
		}
	}
	return OpenDSN(path)
}

// OpenDSN opens a journal from a raw sqlite DSN, e.g. "file::memory:".
func OpenDSN(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "migrate history db")
	}
	return &Store{db: db}, nil
}

// Append implements orchestrator.Journal.
func (s *Store) Append(ctx context.Context, o orchestrator.Outcome) error {
	e := Entry{
		ID:         uuid.New(),
		RequestID:  o.RequestID,
		Kind:       string(o.Kind),
		Asset:      o.Asset.Symbol,
		AssetAddr:  o.Asset.Address.Hex(),
		Amount:     fixedpoint.FormatUnits(o.Amount, o.Asset.Decimals),
		Phase:      string(o.Phase),
		StartedAt:  o.StartedAt.UTC(),
		FinishedAt: o.FinishedAt.UTC(),
	}
	if o.Handle != (common.Hash{}) {
		e.TxHash = o.Handle.Hex()
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&e).Error, "append history")
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []Entry
	err := s.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
