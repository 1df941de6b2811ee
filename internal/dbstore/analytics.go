package dbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AnalyticsRecord is one evaluation attempt. Feedback and the correctness
// flag are the only mutable columns.
type AnalyticsRecord struct {
	ID                  int64
	UserID              int64
	TaskID              string
	UpdatedSteps        string
	TokensPerTextPrompt int
	TokensPerAttachment int
	GPTResponse         string
	TotalCost           float64
	TimeConsumed        float64
	Feedback            string
	TimeStamp           time.Time
	ExtractionService   string
	MarkedCorrect       *bool
}

// InsertAnalytics records one evaluation attempt and returns its id.
func (s *Store) InsertAnalytics(ctx context.Context, rec *AnalyticsRecord) (int64, error) {
	var id int64
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO analytics
				(user_id, task_id, updated_steps, tokens_per_text_prompt,
				 tokens_per_attachment, gpt_response, total_cost, time_consumed,
				 extraction_service)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			rec.UserID, rec.TaskID, rec.UpdatedSteps, rec.TokensPerTextPrompt,
			rec.TokensPerAttachment, rec.GPTResponse, rec.TotalCost, rec.TimeConsumed,
			rec.ExtractionService,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert analytics for task %s: %w", rec.TaskID, err)
	}
	return id, nil
}

// SetFeedback stores human feedback on a recorded attempt.
func (s *Store) SetFeedback(ctx context.Context, id int64, feedback string) error {
	return s.updateAnalytics(ctx, id, `UPDATE analytics SET feedback = $2 WHERE id = $1`, feedback)
}

// MarkCorrect flips the correctness flag on a recorded attempt.
func (s *Store) MarkCorrect(ctx context.Context, id int64, correct bool) error {
	return s.updateAnalytics(ctx, id, `UPDATE analytics SET marked_correct = $2 WHERE id = $1`, correct)
}

func (s *Store) updateAnalytics(ctx context.Context, id int64, query string, value interface{}) error {
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, id, value)
		if err != nil {
			return fmt.Errorf("update analytics %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: analytics row %d", ErrNotFound, id)
		}
		return nil
	})
}

// ListAnalytics returns every recorded attempt, newest first.
func (s *Store) ListAnalytics(ctx context.Context) ([]AnalyticsRecord, error) {
	var records []AnalyticsRecord
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, user_id, task_id, updated_steps, tokens_per_text_prompt,
				tokens_per_attachment, gpt_response, total_cost, time_consumed,
				COALESCE(feedback, ''), time_stamp, extraction_service, marked_correct
			FROM analytics ORDER BY time_stamp DESC`)
		if err != nil {
			return fmt.Errorf("query analytics: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var rec AnalyticsRecord
			if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TaskID, &rec.UpdatedSteps,
				&rec.TokensPerTextPrompt, &rec.TokensPerAttachment, &rec.GPTResponse,
				&rec.TotalCost, &rec.TimeConsumed, &rec.Feedback, &rec.TimeStamp,
				&rec.ExtractionService, &rec.MarkedCorrect); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// User is one front-end account. Password holds the bcrypt hash.
type User struct {
	UserID    int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Password  string
}

// CreateUser inserts an account row and returns its id. Duplicate emails
// fail on the unique constraint.
func (s *Store) CreateUser(ctx context.Context, u *User) (int64, error) {
	var id int64
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, phone, email, password)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING user_id`,
			u.FirstName, u.LastName, u.Phone, u.Email, u.Password,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return id, nil
}

// GetUserByEmail returns the account for a login attempt, ErrNotFound if
// the email is unregistered.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT user_id, COALESCE(first_name, ''), COALESCE(last_name, ''),
				COALESCE(phone, ''), email, password
			FROM users WHERE email = $1`, email,
		).Scan(&u.UserID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.Password)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %s", ErrNotFound, email)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// StoreToken saves the user's current session token.
func (s *Store) StoreToken(ctx context.Context, userID int64, token string) error {
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `UPDATE users SET jwt_token = $2 WHERE user_id = $1`, userID, token)
		if err != nil {
			return fmt.Errorf("store token for user %d: %w", userID, err)
		}
		return nil
	})
}
