// Package activity describes user activity records.
package activity

// Activity types written by this service.
const (
	TypeRelationshipCreated = "relationship_created"
	TypeRelationshipDeleted = "relationship_deleted"
)

// EntityTask is the entity type of task-scoped activities.
const EntityTask = "task"

// Entry is a single activity row.
type Entry struct {
	Type        string
	Title       string
	EntityID    string
	EntityType  string
	UserID      string
	WorkspaceID string
	CreatedAt   int64 // unix millis
}
