package postgres

import (
	"context"
	"fmt"

	"github.com/arvind-99/commune/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostStore struct {
	pool *pgxpool.Pool
}

func NewPostStore(pool *pgxpool.Pool) *PostStore {
	return &PostStore{pool: pool}
}

func (s *PostStore) Create(ctx context.Context, userID int64, filename string, isPrivate bool) (*models.Post, error) {
	query := `
		INSERT INTO posts (user_id, filename, is_private, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, user_id, filename, is_private, created_at`

	var p models.Post
	err := s.pool.QueryRow(ctx, query, userID, filename, isPrivate).Scan(
		&p.ID,
		&p.UserID,
		&p.Filename,
		&p.IsPrivate,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return &p, nil
}

// ListVisible returns public posts plus the viewer's own private ones,
// newest first, with the author's username joined in.
func (s *PostStore) ListVisible(ctx context.Context, viewerID int64) ([]models.Post, error) {
	query := `
		SELECT p.id, p.user_id, p.filename, p.is_private, p.created_at, u.username
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.is_private = false OR p.user_id = $1
		ORDER BY p.created_at DESC
		LIMIT 200`

	rows, err := s.pool.Query(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Filename,
			&p.IsPrivate,
			&p.CreatedAt,
			&p.Username,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}
