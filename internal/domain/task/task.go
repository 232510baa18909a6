package task

import "strings"

// Task is a snapshot of a task row.
type Task struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      string
	Priority    string
	CreatedBy   string
	Assignee    string
	CreatedAt   int64 // unix millis
}

// Text is the text used to embed the task.
func (t *Task) Text() string {
	return strings.TrimSpace(t.Title + " " + t.Description)
}

// FirstWord returns the first whitespace-separated word of the title.
func (t *Task) FirstWord() string {
	fields := strings.Fields(t.Title)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
