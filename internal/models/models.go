package models

import "time"

// User is an account in the directory. Username doubles as the name of
// the user's chat channel, so it is unique and immutable once created.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profile_image,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Post is one uploaded media item on the feed.
//
// Username and MediaType are enrichments the feed query fills in; they
// are not columns on the posts table. MediaType is one of "image",
// "video", "audio" or "unknown".
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`

	Username  string `json:"username,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Friend request statuses. The relation has exactly three observable
// states: absent, pending, accepted.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// FriendRequest is one directed edge in the friend graph. A mutual
// friendship is a single row with status "accepted"; direction records
// who asked.
type FriendRequest struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Status     string `json:"status"`

	SenderUsername string `json:"sender_username,omitempty"`
}

// Friend is an accepted friendship as seen from one side, enriched
// with live presence for the chat friend selector.
type Friend struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Message is a single private chat message. IDs are bigserial, so they
// order by insertion and serve as the history cursor. Rows are
// append-only: the store exposes no update or delete path.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
