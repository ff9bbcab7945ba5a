package events

import (
	"time"
)

// EventType identifies the type of event
type EventType string

// Core event types
const (
	// Chat events
	ChatSessionsUpdated EventType = "chat.sessions.updated"
	ChatSessionCreated  EventType = "chat.session.created"
	ChatSessionSwitched EventType = "chat.session.switched"
	ChatLedgerUpdated   EventType = "chat.ledger.updated"
	ChatSendStarted     EventType = "chat.send.started"
	ChatSendMerged      EventType = "chat.send.merged"
	ChatSendFailed      EventType = "chat.send.failed"

	// Knowledge-base events
	DocumentUploaded EventType = "kb.document.uploaded"
	DocumentDeleted  EventType = "kb.document.deleted"

	// Auth events
	AuthExpired  EventType = "auth.expired"
	AuthLoggedIn EventType = "auth.logged.in"

	// Notification events
	NotificationInfo    EventType = "notification.info"
	NotificationSuccess EventType = "notification.success"
	NotificationWarning EventType = "notification.warning"
	NotificationError   EventType = "notification.error"
)

// Event represents a generic event in the system
type Event[T any] struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	SessionID int64     `json:"session_id,omitempty"`
}

// Publisher defines the interface for publishing events
type Publisher[T any] interface {
	Publish(eventType EventType, payload T, opts ...PublishOption)
}

// PublishOptions carries optional event metadata
type PublishOptions struct {
	SessionID int64
}

// PublishOption configures a publish call
type PublishOption func(*PublishOptions)

// WithSessionID tags the event with the session it concerns
func WithSessionID(id int64) PublishOption {
	return func(o *PublishOptions) {
		o.SessionID = id
	}
}
