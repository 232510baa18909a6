package graph

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/taskctx/internal/db"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
)

// tripleRow is one (subject, predicate, object) edge.
type tripleRow struct {
	Subject   string
	Predicate string
	Object    string
	CreatedAt int64 `gorm:"autoCreateTime:false"`
}

func (tripleRow) TableName() string { return "task_relationships" }

// SQLiteStore keeps edges as (subject, predicate, object) triples in task_relationships.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLiteStore creates a SQLite-backed graph store.
func NewSQLiteStore(orm *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: orm, now: time.Now}
}

// Link stores e. The UNIQUE constraint turns duplicates into no-ops.
func (s *SQLiteStore) Link(ctx context.Context, e domgraph.Edge) error {
	row := tripleRow{Subject: e.Source, Predicate: string(e.Type), Object: e.Target, CreatedAt: s.now().UnixMilli()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("link %s -%s-> %s: %w", e.Source, e.Type, e.Target, err)}
	}
	return nil
}

// Unlink removes e if present.
func (s *SQLiteStore) Unlink(ctx context.Context, e domgraph.Edge) error {
	err := s.db.WithContext(ctx).
		Where("subject = ? AND predicate = ? AND object = ?", e.Source, string(e.Type), e.Target).
		Delete(&tripleRow{}).Error
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("unlink %s -%s-> %s: %w", e.Source, e.Type, e.Target, err)}
	}
	return nil
}

// Edges returns every edge touching taskID in creation order.
func (s *SQLiteStore) Edges(ctx context.Context, taskID string) ([]domgraph.Edge, error) {
	var rows []tripleRow
	err := s.db.WithContext(ctx).
		Where("subject = ? OR object = ?", taskID, taskID).
		Order("created_at").Order("rowid").
		Find(&rows).Error
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("edges %s: %w", taskID, err)}
	}

	out := make([]domgraph.Edge, len(rows))
	for i, r := range rows {
		out[i] = domgraph.Edge{Source: r.Subject, Target: r.Object, Type: domgraph.RelationshipType(r.Predicate)}
	}
	return out, nil
}

// DetachAll removes every edge touching taskID.
func (s *SQLiteStore) DetachAll(ctx context.Context, taskID string) error {
	err := s.db.WithContext(ctx).
		Where("subject = ? OR object = ?", taskID, taskID).
		Delete(&tripleRow{}).Error
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("detach %s: %w", taskID, err)}
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	conn, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("graph store: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("graph store: %w", err)
	}
	return nil
}
