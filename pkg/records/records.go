// Package records adapts the operational punch-list database into a
// backfill source for the retrieval pipeline.
package records

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
	"github.com/AhmedEldessouki1982/cdns/pkg/rag"
)

// TOD is one technical outstanding-defect record. Status true means the
// defect is closed.
type TOD struct {
	bun.BaseModel `bun:"table:tods,alias:t"`

	ID          int64     `bun:"id,pk,autoincrement"`
	PunchID     string    `bun:"punch_id,notnull,unique"`
	Description string    `bun:"description"`
	System      string    `bun:"system"`
	Status      bool      `bun:"status"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:now()"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:now()"`
}

// Store reads TOD records for backfill and lookups.
type Store struct {
	db *bun.DB
}

// Connect opens the records database. verbose enables query logging.
func Connect(dsn, password string, verbose bool) *Store {
	var opts []pgdriver.Option
	opts = append(opts, pgdriver.WithDSN(dsn))
	if password != "" {
		opts = append(opts, pgdriver.WithPassword(password))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())
	if verbose {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

// Init creates the tods table when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*TOD)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Table names the source collection for chunk keys.
func (s *Store) Table() string { return "tods" }

// ListPage returns one page of records ordered by id, mapped into
// backfill source records. Tags carry the record's system plus its
// open/closed status.
func (s *Store) ListPage(ctx context.Context, offset, limit int) ([]rag.SourceRecord, error) {
	var tods []TOD
	err := s.db.NewSelect().
		Model(&tods).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]rag.SourceRecord, 0, len(tods))
	for _, tod := range tods {
		records = append(records, rag.SourceRecord{
			PK:      tod.PunchID,
			Content: tod.Description,
			Tags:    recordTags(tod),
		})
	}
	return records, nil
}

// GetByPunchID looks up one record by its punch identifier.
func (s *Store) GetByPunchID(ctx context.Context, punchID string) (*TOD, error) {
	var tod TOD
	err := s.db.NewSelect().
		Model(&tod).
		Where("punch_id = ?", punchID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tod, nil
}

func recordTags(tod TOD) []string {
	status := "open"
	if tod.Status {
		status = "closed"
	}
	if tod.System == "" {
		return []string{status}
	}
	return []string{tod.System, status}
}

var _ rag.RecordSource = (*Store)(nil)
