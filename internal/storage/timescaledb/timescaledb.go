// Package timescaledb stores processing runs in PostgreSQL with the
// TimescaleDB extension. Grid cells live in a hypertable keyed on time.
package timescaledb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chrissnell/inform/internal/database"
	"github.com/chrissnell/inform/internal/log"
	"github.com/chrissnell/inform/internal/storage"
)

// Storage holds the connection to a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

var _ storage.Store = (*Storage)(nil)

// cellBatchSize bounds the rows per INSERT.
const cellBatchSize = 500

// schemaStep is one idempotent setup statement.
type schemaStep struct {
	name string
	sql  string
}

var schema = []schemaStep{
	{"TimescaleDB extension", createExtensionSQL},
	{"runs table", createRunsTableSQL},
	{"blocks table", createBlocksTableSQL},
	{"cells table", createCellsTableSQL},
	{"cells hypertable", createCellsHypertableSQL},
	{"cells index", createCellsIndexSQL},
}

// New connects to TimescaleDB and creates the schema if needed.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	conn, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	t := &Storage{TimescaleDBConn: conn}

	for _, step := range schema {
		log.Infof("creating %s...", step.name)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			log.Warnf("warning: could not create %s", step.name)
			return nil, fmt.Errorf("create %s: %w", step.name, err)
		}
	}
	return t, nil
}

func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (t *Storage) SaveRun(ctx context.Context, r *storage.RunResults) error {
	run, err := database.NewRunModel(r.Run)
	if err != nil {
		return err
	}
	blocks := make([]database.BlockModel, len(r.Blocks))
	for i, b := range r.Blocks {
		blocks[i] = database.NewBlockModel(b)
		blocks[i].RunID = r.Run.ID
	}
	cells := make([]database.CellModel, len(r.Cells))
	for i, c := range r.Cells {
		if cells[i], err = database.NewCellModel(c); err != nil {
			return err
		}
		cells[i].RunID = r.Run.ID
	}

	err = t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("insert run %s: %w", r.Run.ID, err)
		}
		if len(blocks) > 0 {
			if err := tx.Create(&blocks).Error; err != nil {
				return fmt.Errorf("insert blocks: %w", err)
			}
		}
		if len(cells) > 0 {
			if err := tx.CreateInBatches(&cells, cellBatchSize).Error; err != nil {
				return fmt.Errorf("insert cells: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("could not store run:", err)
		return err
	}
	log.Infow("stored run", "run", r.Run.ID, "blocks", len(blocks), "cells", len(cells))
	return nil
}

func (t *Storage) ListRuns(ctx context.Context) ([]storage.Run, error) {
	var models []database.RunModel
	if err := t.TimescaleDBConn.WithContext(ctx).Order("created_at DESC, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]storage.Run, 0, len(models))
	for _, m := range models {
		r, err := m.Run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (t *Storage) GetRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	var m database.RunModel
	err := t.TimescaleDBConn.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	r, err := m.Run()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Storage) exists(ctx context.Context, id uuid.UUID) error {
	var n int64
	if err := t.TimescaleDBConn.WithContext(ctx).Model(&database.RunModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *Storage) Blocks(ctx context.Context, id uuid.UUID, kind storage.BlockKind) ([]storage.BlockRecord, error) {
	if err := t.exists(ctx, id); err != nil {
		return nil, err
	}
	q := t.TimescaleDBConn.WithContext(ctx).Where("run_id = ?", id)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	var models []database.BlockModel
	if err := q.Order("kind, seq").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("blocks for run %s: %w", id, err)
	}
	out := make([]storage.BlockRecord, len(models))
	for i, m := range models {
		out[i] = m.Record()
	}
	return out, nil
}

func (t *Storage) Cells(ctx context.Context, id uuid.UUID) ([]storage.CellRecord, error) {
	if err := t.exists(ctx, id); err != nil {
		return nil, err
	}
	var models []database.CellModel
	if err := t.TimescaleDBConn.WithContext(ctx).Where("run_id = ?", id).Order("time, seq").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cells for run %s: %w", id, err)
	}
	out := make([]storage.CellRecord, len(models))
	for i, m := range models {
		r, err := m.Record()
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
