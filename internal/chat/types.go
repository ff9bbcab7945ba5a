package chat

import (
	"time"

	"github.com/trustflow-labs/trustflow/internal/api"
)

// Role identifies who authored a message. Fixed at creation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType discriminates the rendering path for a message.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// Mode selects the generation path. The mode toggle is a closed
// enumeration: each mode maps to exactly one model id.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// Message is one entry in a session's ledger.
//
// User messages are created locally and appended before any network
// activity. Assistant messages are created only from a successful backend
// response. TxHash, Citations, ArtifactURL and WatermarkStatus are optional
// and absent fields degrade to an unadorned rendering.
type Message struct {
	ID              string
	Role            Role
	Content         string
	ContentType     ContentType
	CreatedAt       time.Time
	ArtifactURL     string
	TxHash          string
	WatermarkStatus string
	Citations       []api.Citation
}

// Session is one conversation thread as the sidebar sees it.
type Session struct {
	ID         int64
	Title      string
	LastActive time.Time
}

// SendState tracks a single send through its lifecycle.
type SendState int

const (
	StateIdle SendState = iota
	StateOptimisticInserted
	StateSessionResolving
	StateGenerating
	StateMerged
	StateFailed
)

func (s SendState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimisticInserted:
		return "optimistic_inserted"
	case StateSessionResolving:
		return "session_resolving"
	case StateGenerating:
		return "generating"
	case StateMerged:
		return "merged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventPayload is what the reconciler publishes through the event broker.
type EventPayload struct {
	State   SendState
	Message string
	Err     error
}

func sessionFromAPI(item api.SessionItem) Session {
	return Session{
		ID:         item.SessionID,
		Title:      item.Title,
		LastActive: item.LastActive.Time,
	}
}

func messageFromAPI(record api.ChatMessage) Message {
	contentType := ContentType(record.ContentType)
	if contentType == "" {
		contentType = ContentText
	}
	return Message{
		Role:            Role(record.Role),
		Content:         record.Content,
		ContentType:     contentType,
		CreatedAt:       record.CreatedAt.Time,
		ArtifactURL:     record.ArtifactURL,
		TxHash:          record.TxHash,
		WatermarkStatus: record.WatermarkStatus,
		Citations:       record.Citations,
	}
}
