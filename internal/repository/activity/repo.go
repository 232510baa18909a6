// Package activity records user activity rows in the relational store.
package activity

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kailas-cloud/taskctx/internal/db"
	domact "github.com/kailas-cloud/taskctx/internal/domain/activity"
)

type activityRow struct {
	ID          int64 `gorm:"primaryKey"`
	Type        string
	Title       string
	EntityID    string
	EntityType  string
	UserID      string
	WorkspaceID string
	CreatedAt   int64 `gorm:"autoCreateTime:false"`
}

func (activityRow) TableName() string { return "activities" }

// Repo implements usecase/graph.ActivityLogger.
type Repo struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates an activity repository.
func New(orm *gorm.DB) *Repo {
	return &Repo{db: orm, now: time.Now}
}

// Log inserts an activity row. CreatedAt defaults to now.
func (r *Repo) Log(ctx context.Context, e domact.Entry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = r.now().UnixMilli()
	}
	row := activityRow{
		Type:        e.Type,
		Title:       e.Title,
		EntityID:    e.EntityID,
		EntityType:  e.EntityType,
		UserID:      e.UserID,
		WorkspaceID: e.WorkspaceID,
		CreatedAt:   e.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("insert activity: %w", err)}
	}
	return nil
}
