package repository

import (
	"context"

	"github.com/arvind-99/commune/internal/models"
)

// Every method takes a context as its first argument: all of these hit
// the database, and a cancelled request should cancel its queries.
// Lookups return nil, nil when no row matches; callers translate that
// to a 404, a silent drop, or an empty result as their contract needs.

// UserRepository is the account directory. GetByUsername is the
// receiver-resolution path for chat sends.
type UserRepository interface {
	Create(ctx context.Context, username, email, passwordHash, profileImage string) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)

	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Search returns users whose username contains keyword, excluding
	// excludeID (the searcher). Empty keyword matches everyone.
	Search(ctx context.Context, keyword string, excludeID int64) ([]models.User, error)
}

// PostRepository handles the media feed.
type PostRepository interface {
	Create(ctx context.Context, userID int64, filename string, isPrivate bool) (*models.Post, error)

	// ListVisible returns posts the viewer may see: every public post
	// plus the viewer's own private ones, newest first.
	ListVisible(ctx context.Context, viewerID int64) ([]models.Post, error)
}

// FriendRepository manages the three-state friend relation
// (absent, pending, accepted). At most one row exists per user pair,
// in either direction.
type FriendRepository interface {
	// SendRequest creates a pending request. No-op if any relation
	// already exists between the pair, in either direction.
	SendRequest(ctx context.Context, senderID, receiverID int64) error

	// Accept flips a pending request addressed to receiverID to
	// accepted. No-op if no such pending request exists.
	Accept(ctx context.Context, senderID, receiverID int64) error

	// Delete removes the relation between the pair, whichever
	// direction it was created in.
	Delete(ctx context.Context, userID, otherID int64) error

	// ListFriends returns the accepted friends of userID.
	ListFriends(ctx context.Context, userID int64) ([]models.User, error)

	// ListPending returns incoming pending requests with the sender's
	// username populated.
	ListPending(ctx context.Context, receiverID int64) ([]models.FriendRequest, error)

	// StatusBetween reports the relation between two users: "" when
	// absent, otherwise pending or accepted.
	StatusBetween(ctx context.Context, userID, otherID int64) (string, error)
}

// MessageRepository is the durable system of record for chat. Append is
// the only write path; rows are never mutated or deleted.
type MessageRepository interface {
	// Append persists one message and returns it with ID and CreatedAt
	// populated. The chat service dispatches only after Append
	// succeeds.
	Append(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error)

	// ListConversation returns messages between the pair, newest
	// first. before=0 starts from the latest; otherwise only messages
	// with id < before are returned.
	ListConversation(ctx context.Context, userID, otherID int64, before int64, limit int) ([]models.Message, error)
}
