package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities from info (0) to error (3). Unknown severities rank as info.
func (s Severity) Rank() int {
	switch s {
	case SeveritySuccess:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}

func NewNotification(entityID string, severity Severity, format string, args ...interface{}) Notification {
	return Notification{
		ID:        uuid.New(),
		EntityID:  entityID,
		Message:   fmt.Sprintf(format, args...),
		Severity:  severity,
		CreatedAt: time.Now(),
	}
}

// Notification is a fire-and-forget message for the operator.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	EntityID  string    `json:"entityId,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewBatch(target string, notifications []Notification) Batch {
	return Batch{
		ID:            uuid.New(),
		Target:        target,
		Notifications: notifications,
		CreatedAt:     time.Now(),
	}
}

// Batch is a group of notifications bound for one webhook target.
type Batch struct {
	ID            uuid.UUID      `json:"id"`
	Target        string         `json:"target"`
	Notifications []Notification `json:"notifications"`
	CreatedAt     time.Time      `json:"createdAt"`
}
