package api

import (
	"bytes"
	"fmt"
	"time"
)

// Generation modes understood by the backend.
const (
	ModeText  = "text"
	ModeImage = "image"
)

// Timestamp unmarshals the timestamp formats the backend is known to emit:
// RFC 3339 and the legacy "2006-01-02 15:04:05" form used by older document
// records. A missing or empty field decodes to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// SessionItem is one entry in the session list.
type SessionItem struct {
	SessionID  int64     `json:"session_id"`
	Title      string    `json:"title"`
	LastActive Timestamp `json:"last_active"`
}

// CreateSessionRequest creates a new conversation session.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// CreateSessionResponse is the backend's record for a freshly created session.
type CreateSessionResponse struct {
	SessionID    int64     `json:"session_id"`
	Title        string    `json:"title"`
	LatestTxHash string    `json:"latest_tx_hash"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Citation references a source document chunk that contributed to a
// retrieval-augmented answer.
type Citation struct {
	DocID       int64   `json:"doc_id"`
	FileName    string  `json:"file_name"`
	Page        int     `json:"page"`
	Score       float64 `json:"score"`
	TextSnippet string  `json:"text_snippet"`
}

// ChatMessage is one record in a session's history. The backend does not
// guarantee return order; callers sort by CreatedAt before display.
type ChatMessage struct {
	Role            string     `json:"role"`
	Content         string     `json:"content"`
	CreatedAt       Timestamp  `json:"created_at"`
	ContentType     string     `json:"content_type,omitempty"`
	ArtifactURL     string     `json:"artifact_url,omitempty"`
	TxHash          string     `json:"tx_hash,omitempty"`
	WatermarkStatus string     `json:"watermark_status,omitempty"`
	Citations       []Citation `json:"citations,omitempty"`
}

// GenerationParameters carries the mode-specific knobs for a completion
// request. Text mode sets Temperature only; image mode sets the image fields
// and omits Temperature.
type GenerationParameters struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	ImageSize         string   `json:"image_size,omitempty"`
	NumInferenceSteps int      `json:"num_inference_steps,omitempty"`
	BatchSize         int      `json:"batch_size,omitempty"`
}

// CompletionRequest asks the backend to generate a response inside a session.
type CompletionRequest struct {
	SessionID  int64                `json:"session_id"`
	Mode       string               `json:"mode"`
	Model      string               `json:"model"`
	Prompt     string               `json:"prompt"`
	Parameters GenerationParameters `json:"parameters"`
}

// CompletionResponse is the generated assistant record. Citations are present
// only for retrieval-augmented text answers; ArtifactURL and WatermarkStatus
// only for image mode.
type CompletionResponse struct {
	SessionID       int64      `json:"session_id"`
	RecordID        int64      `json:"record_id"`
	ContentType     string     `json:"content_type"`
	Role            string     `json:"role"`
	Content         string     `json:"content"`
	TxHash          string     `json:"tx_hash"`
	Citations       []Citation `json:"citations,omitempty"`
	ArtifactURL     string     `json:"artifact_url,omitempty"`
	WatermarkStatus string     `json:"watermark_status,omitempty"`
}

// DocumentRecord is a knowledge-base document as the backend returns it.
// Field names here follow the wire format; internal/knowledge maps them onto
// the client-side Document shape.
type DocumentRecord struct {
	DocID      int64     `json:"doc_id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress,omitempty"`
	Hash       string    `json:"hash,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	UploadTime Timestamp `json:"upload_time"`
	UpdateTime Timestamp `json:"update_time,omitempty"`
}

// UploadResponse acknowledges a document upload.
type UploadResponse struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"filename"`
	Message  string `json:"message"`
}

// NonceResponse carries the one-time challenge for wallet login.
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// UserInfo identifies the authenticated wallet.
type UserInfo struct {
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

// LoginResponse is the credential issued after a successful signature check.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	UserInfo    UserInfo `json:"user_info"`
}

// VerifyResult is the outcome of a content check. MatchedRecord is set for
// text matches, OriginalRecord for image matches; both are optional and the
// caller degrades gracefully when either is absent.
type VerifyResult struct {
	Status           string          `json:"status"`
	VerificationType string          `json:"verification_type"`
	CheckResult      string          `json:"check_result"`
	MatchedRecord    *ProvenanceInfo `json:"matched_record,omitempty"`
	OriginalRecord   *ProvenanceInfo `json:"original_record,omitempty"`
	Citations        []Citation      `json:"citations,omitempty"`
}

// ProvenanceInfo describes an anchored generation record.
type ProvenanceInfo struct {
	RecordID    int64     `json:"record_id"`
	SessionID   int64     `json:"session_id,omitempty"`
	Content     string    `json:"content,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	TxHash      string    `json:"tx_hash"`
	CreatedAt   Timestamp `json:"created_at,omitempty"`
	Similarity  float64   `json:"similarity,omitempty"`
}

// TxRecord is the result of a direct transaction-hash lookup.
type TxRecord struct {
	TxHash              string        `json:"tx_hash"`
	Content             string        `json:"content,omitempty"`
	ContentType         string        `json:"content_type,omitempty"`
	CreatedAt           Timestamp     `json:"created_at,omitempty"`
	Citations           []Citation    `json:"citations,omitempty"`
	DialogChain         []ChatMessage `json:"dialog_chain,omitempty"`
	BlockchainExplorer  string        `json:"blockchain_explorer_url,omitempty"`
	WatermarkStatus     string        `json:"watermark_status,omitempty"`
}
