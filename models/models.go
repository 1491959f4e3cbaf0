package models

// DeletedContent replaces the body of a tombstoned message everywhere it is
// stored or displayed.
const DeletedContent = "This message was deleted"

// Message is one chat message between two course participants. ID is the
// server-assigned uuid once the hub has accepted the message; a locally
// originated message carries a client-generated temporary id until it is
// reconciled against the hub's echo.
type Message struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name"`
	Content      string `json:"content"`
	SentAt       string `json:"sent_at"` // raw hub timestamp; normalize via timeutil
	IsDeleted    bool   `json:"is_deleted"`
}

// Peer is a roster entry: someone the user can open a conversation with.
type Peer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	LastSeen string `json:"last_seen,omitempty"`
}
