package models

import (
	"time"

	"gorm.io/datatypes"
)

// Request event actions
const (
	ActionCreated           = "created"
	ActionUpdated           = "updated"
	ActionDeleted           = "deleted"
	ActionAttachmentAdded   = "attachment_added"
	ActionAttachmentRemoved = "attachment_removed"
)

// RequestEvent is one entry of a request's audit trail
type RequestEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RequestID string         `gorm:"type:uuid;not null;index" json:"requestId"`
	ActorUID  string         `gorm:"column:actor_uid;not null" json:"actorUid"`
	Action    string         `gorm:"not null" json:"action"`
	Changes   datatypes.JSON `json:"changes,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TableName specifies the table name for RequestEvent model
func (RequestEvent) TableName() string {
	return "request_events"
}

// FieldChange records the old and new value of a single field
type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}
