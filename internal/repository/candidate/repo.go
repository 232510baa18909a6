// Package candidate reads task and transcript candidates from the relational store.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kailas-cloud/taskctx/internal/db"
	"github.com/kailas-cloud/taskctx/internal/db/sqlite"
	"github.com/kailas-cloud/taskctx/internal/domain"
	domcand "github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
)

type taskRow struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      string
	Priority    string
	CreatedBy   string
	Assignee    string
	CreatedAt   int64 `gorm:"autoCreateTime:false"`
}

func (taskRow) TableName() string { return "tasks" }

func (r *taskRow) toTask() task.Task {
	return task.Task{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		CreatedBy:   r.CreatedBy,
		Assignee:    r.Assignee,
		CreatedAt:   r.CreatedAt,
	}
}

type transcriptRow struct {
	ID           string
	WorkspaceID  string
	MeetingTitle string
	Summary      string
	Content      string
	CreatedBy    string
	CreatedAt    int64 `gorm:"autoCreateTime:false"`
}

func (transcriptRow) TableName() string { return "transcripts" }

type workspaceRow struct {
	ID      string
	OwnerID string
}

func (workspaceRow) TableName() string { return "workspaces" }

type memberRow struct {
	WorkspaceID string
	UserID      string
}

func (memberRow) TableName() string { return "workspace_members" }

// Repo implements usecase/retrieval.CandidateFetcher and usecase/graph.TaskReader.
type Repo struct {
	db *gorm.DB
}

// New creates a candidate repository.
func New(orm *gorm.DB) *Repo {
	return &Repo{db: orm}
}

// TaskCandidates returns tasks the principal created or is assigned to, most recent first.
func (r *Repo) TaskCandidates(ctx context.Context, f domcand.Filter) ([]domcand.Candidate, error) {
	q := r.db.WithContext(ctx).
		Select("id", "title", "description").
		Where("created_by = ? OR assignee = ?", f.Principal, f.Principal)
	if f.ExcludeTaskID != "" {
		q = q.Where("id <> ?", f.ExcludeTaskID)
	}
	q = bounded(inWorkspace(containsAny(q, f.Contains, "title", "description"), f.WorkspaceID), f.Limit)

	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("tasks: %w", err)}
	}

	out := make([]domcand.Candidate, 0, len(rows))
	for i := range rows {
		out = append(out, domcand.New(domcand.KindTask, rows[i].ID, rows[i].Title, rows[i].Description, ""))
	}
	return out, nil
}

// TranscriptCandidates returns transcripts the principal created, most recent first.
func (r *Repo) TranscriptCandidates(ctx context.Context, f domcand.Filter) ([]domcand.Candidate, error) {
	q := r.db.WithContext(ctx).
		Select("id", "meeting_title", "summary", "content").
		Where("created_by = ?", f.Principal)
	q = bounded(inWorkspace(containsAny(q, f.Contains, "meeting_title", "summary", "content"), f.WorkspaceID), f.Limit)

	var rows []transcriptRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("transcripts: %w", err)}
	}

	out := make([]domcand.Candidate, 0, len(rows))
	for i := range rows {
		out = append(out, domcand.New(domcand.KindTranscript,
			rows[i].ID, rows[i].MeetingTitle, rows[i].Summary, rows[i].Content))
	}
	return out, nil
}

// Task returns a task the principal may read: creator, assignee or workspace member.
// Absent and unreadable tasks both yield domain.ErrNotFound.
func (r *Repo) Task(ctx context.Context, principal, taskID string) (task.Task, error) {
	var row taskRow
	err := r.readable(r.db.WithContext(ctx), principal).
		Where("id = ?", taskID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
		}
		return task.Task{}, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("task %s: %w", taskID, err)}
	}
	return row.toTask(), nil
}

// TasksByID loads the tasks among ids that the principal may read.
// Missing and unreadable ids are omitted.
func (r *Repo) TasksByID(ctx context.Context, principal string, ids []string) (map[string]task.Task, error) {
	out := make(map[string]task.Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []taskRow
	err := r.readable(r.db.WithContext(ctx), principal).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("tasks by id: %w", err)}
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toTask()
	}
	return out, nil
}

// CanAccessWorkspace reports whether the principal owns or is a member of the workspace.
func (r *Repo) CanAccessWorkspace(ctx context.Context, principal, workspaceID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&workspaceRow{}).
		Where("id = ?", workspaceID).
		Where("owner_id = ? OR EXISTS (?)", principal, r.membership("workspaces.id", principal)).
		Count(&n).Error
	if err != nil {
		return false, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("workspace access: %w", err)}
	}
	return n > 0, nil
}

// readable restricts a tasks query to rows the principal created, is assigned to,
// or can see through workspace membership.
func (r *Repo) readable(q *gorm.DB, principal string) *gorm.DB {
	return q.Model(&taskRow{}).Where("created_by = ? OR assignee = ? OR EXISTS (?)",
		principal, principal, r.membership("tasks.workspace_id", principal))
}

// membership is the correlated subquery matching workspaceColumn against the principal's memberships.
func (r *Repo) membership(workspaceColumn, principal string) *gorm.DB {
	return r.db.Model(&memberRow{}).
		Select("1").
		Where("workspace_members.workspace_id = "+workspaceColumn).
		Where("workspace_members.user_id = ?", principal)
}

func inWorkspace(q *gorm.DB, workspaceID string) *gorm.DB {
	if workspaceID == "" {
		return q
	}
	return q.Where("workspace_id = ?", workspaceID)
}

// containsAny matches needle as a case-insensitive literal substring of any column.
// Folding goes through sqlite.CaseFold so non-ASCII text folds the same way as in Go.
func containsAny(q *gorm.DB, needle string, columns ...string) *gorm.DB {
	if needle == "" || len(columns) == 0 {
		return q
	}
	folded := sqlite.Fold(needle)
	preds := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		preds[i] = "instr(" + sqlite.CaseFold + "(" + c + "), ?) > 0"
		args[i] = folded
	}
	return q.Where(strings.Join(preds, " OR "), args...)
}

// bounded orders most recent first and applies limit when positive.
func bounded(q *gorm.DB, limit int) *gorm.DB {
	q = q.Order("created_at DESC").Order("rowid DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
