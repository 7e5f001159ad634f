package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskType classifies where a task's effort goes.
type TaskType string

const (
	TypeCall    TaskType = "call"
	TypeContent TaskType = "content"
	TypeDev     TaskType = "dev"
	TypeOther   TaskType = "other"
)

// IsValid reports whether t is one of the known task types.
func (t TaskType) IsValid() bool {
	switch t {
	case TypeCall, TypeContent, TypeDev, TypeOther:
		return true
	}
	return false
}

// AttachmentKind is the media class of a task attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentLink  AttachmentKind = "link"
)

// Attachment is a file or link attached to a task.
type Attachment struct {
	ID   string         `json:"id"`
	Kind AttachmentKind `json:"kind" validate:"omitempty,oneof=image pdf link"`
	URL  string         `json:"url"`
	Name string         `json:"name,omitempty"`
	Size int64          `json:"size,omitempty"`
}

// Task is a unit of work. Percentage is an additive weight contributed to
// the monthly progress total when the task is completed, not a 0-100 scale.
// FolderID is a weak reference: deleting a folder detaches its tasks, it
// never deletes them.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title" validate:"required,min=1,max=255"`
	Completed   bool         `json:"completed"`
	Percentage  float64      `json:"percentage" validate:"gte=0"`
	Type        TaskType     `json:"type" validate:"omitempty,oneof=call content dev other"`
	FolderID    *string      `json:"folder_id,omitempty"`
	OrderIndex  int          `json:"order_index"`
	EventID     *string      `json:"event_id,omitempty"`
	EventTime   *time.Time   `json:"event_time,omitempty"`
	Archived    bool         `json:"archived"`
	Blocked     bool         `json:"blocked"`
	BlockReason string       `json:"block_reason,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DecodeAttachments turns whatever the remote store handed back into a
// proper attachment list. Historic rows stored the list as a text blob
// (and the oldest ones as a bare URL string), newer rows use a native
// JSON array. All three forms are accepted.
func DecodeAttachments(raw []byte) []Attachment {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var list []Attachment
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	// Text blob: a JSON string whose content is itself the encoded array,
	// or a bare URL from before attachments had structure.
	var blob string
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil
	}
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(blob), &list); err == nil {
		return list
	}
	return []Attachment{{Kind: AttachmentLink, URL: blob}}
}

// EncodeAttachments serializes the attachment list for storage. An empty
// list encodes as SQL-friendly JSON null.
func EncodeAttachments(list []Attachment) []byte {
	if len(list) == 0 {
		return []byte("null")
	}
	data, err := json.Marshal(list)
	if err != nil {
		return []byte("null")
	}
	return data
}
