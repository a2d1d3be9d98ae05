package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arvind-99/commune/internal/metrics"
	"github.com/arvind-99/commune/internal/models"
	"github.com/arvind-99/commune/internal/repository"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// EventPrivateMessage is the wire event name for a delivered chat
// message, on both directions of the protocol.
const EventPrivateMessage = "private_message"

var (
	// ErrEmptyMessage: nothing left after sanitization. Dropped
	// silently, matching the no-op policy for malformed events.
	ErrEmptyMessage = errors.New("empty message")

	// ErrUnknownReceiver: the "to" username matches no account. The
	// event is dropped before persistence and before dispatch.
	ErrUnknownReceiver = errors.New("unknown receiver")

	// ErrPersistence: the message store rejected the append. Nothing
	// was dispatched; the sending connection gets an explicit failure
	// event so the loss isn't silent.
	ErrPersistence = errors.New("message not persisted")
)

// MessagePayload is the event body delivered to subscribed connections.
type MessagePayload struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Dispatcher fans an event out to every connection subscribed to any of
// the named channels. Implemented by ws.Hub.
type Dispatcher interface {
	Dispatch(event string, payload any, channels ...string)
}

// Service implements the private-message protocol: sanitize, resolve
// the receiver, persist, then dispatch to the receiver's and the
// sender's channels. Dispatch never happens unless the append
// succeeded, so a delivered message always exists in the store.
type Service struct {
	users      repository.UserRepository
	messages   repository.MessageRepository
	dispatcher Dispatcher
	policy     *bluemonday.Policy
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func NewService(
	users repository.UserRepository,
	messages repository.MessageRepository,
	dispatcher Dispatcher,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:      users,
		messages:   messages,
		dispatcher: dispatcher,
		policy:     bluemonday.StrictPolicy(),
		metrics:    collector,
		logger:     logger,
	}
}

// SendPrivate handles one private_message event from an authenticated
// connection.
//
// Delivery goes to two channels: the receiver's (all of their open
// connections) and the sender's (so the sender's other tabs see the
// echo). The hub dedupes connections subscribed via both, so a
// self-message still arrives exactly once per connection.
func (s *Service) SendPrivate(ctx context.Context, senderID int64, senderUsername, toUsername, content string) error {
	content = strings.TrimSpace(s.policy.Sanitize(content))
	if content == "" {
		s.metrics.MessageDropped(metrics.DropEmpty)
		return ErrEmptyMessage
	}

	receiver, err := s.users.GetByUsername(ctx, toUsername)
	if err != nil {
		return fmt.Errorf("resolve receiver: %w", err)
	}
	if receiver == nil {
		s.metrics.MessageDropped(metrics.DropUnknownReceiver)
		return ErrUnknownReceiver
	}

	msg, err := s.messages.Append(ctx, senderID, receiver.ID, content)
	if err != nil {
		s.metrics.MessageDropped(metrics.DropPersistence)
		s.logger.Error("message append failed",
			zap.Int64("sender_id", senderID),
			zap.Int64("receiver_id", receiver.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload := MessagePayload{
		From:      senderUsername,
		Message:   msg.Content,
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
	}
	s.dispatcher.Dispatch(EventPrivateMessage, payload, receiver.Username, senderUsername)
	s.metrics.MessageSent()

	return nil
}

// History returns recent messages between the caller and the named
// user, newest first. It is a plain read path, fully separate from
// live dispatch; an unknown username yields an empty history rather
// than an error, mirroring the send-side drop policy.
func (s *Service) History(ctx context.Context, userID int64, withUsername string, before int64, limit int) ([]models.Message, error) {
	other, err := s.users.GetByUsername(ctx, withUsername)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if other == nil {
		return []models.Message{}, nil
	}

	return s.messages.ListConversation(ctx, userID, other.ID, before, limit)
}
