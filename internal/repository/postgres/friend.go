package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arvind-99/commune/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FriendStore struct {
	pool *pgxpool.Pool
}

func NewFriendStore(pool *pgxpool.Pool) *FriendStore {
	return &FriendStore{pool: pool}
}

// SendRequest inserts a pending request unless a relation already
// exists between the pair in either direction. The anti-join makes the
// call idempotent and also refuses a reverse duplicate (B asking A
// while A→B is already pending or accepted).
func (s *FriendStore) SendRequest(ctx context.Context, senderID, receiverID int64) error {
	query := `
		INSERT INTO friends (sender_id, receiver_id, status)
		SELECT $1, $2, 'pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM friends
			WHERE (sender_id = $1 AND receiver_id = $2)
			   OR (sender_id = $2 AND receiver_id = $1)
		)`

	_, err := s.pool.Exec(ctx, query, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("send friend request: %w", err)
	}
	return nil
}

func (s *FriendStore) Accept(ctx context.Context, senderID, receiverID int64) error {
	query := `
		UPDATE friends
		SET status = 'accepted'
		WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`

	_, err := s.pool.Exec(ctx, query, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	return nil
}

func (s *FriendStore) Delete(ctx context.Context, userID, otherID int64) error {
	query := `
		DELETE FROM friends
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)`

	_, err := s.pool.Exec(ctx, query, userID, otherID)
	if err != nil {
		return fmt.Errorf("delete friend relation: %w", err)
	}
	return nil
}

func (s *FriendStore) ListFriends(ctx context.Context, userID int64) ([]models.User, error) {
	// The relation is stored once per pair; the friend is whichever
	// side of the row isn't us.
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.profile_image, u.created_at
		FROM users u
		JOIN friends f ON (u.id = f.receiver_id AND f.sender_id = $1)
		              OR (u.id = f.sender_id AND f.receiver_id = $1)
		WHERE f.status = 'accepted'
		ORDER BY u.username`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.PasswordHash,
			&u.ProfileImage,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return friends, nil
}

func (s *FriendStore) ListPending(ctx context.Context, receiverID int64) ([]models.FriendRequest, error) {
	query := `
		SELECT f.id, f.sender_id, f.receiver_id, f.status, u.username
		FROM friends f
		JOIN users u ON u.id = f.sender_id
		WHERE f.receiver_id = $1 AND f.status = 'pending'
		ORDER BY f.id`

	rows, err := s.pool.Query(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.FriendRequest, 0)
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(
			&r.ID,
			&r.SenderID,
			&r.ReceiverID,
			&r.Status,
			&r.SenderUsername,
		); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, nil
}

func (s *FriendStore) StatusBetween(ctx context.Context, userID, otherID int64) (string, error) {
	query := `
		SELECT status FROM friends
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)`

	var status string
	err := s.pool.QueryRow(ctx, query, userID, otherID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("friend status: %w", err)
	}
	return status, nil
}
