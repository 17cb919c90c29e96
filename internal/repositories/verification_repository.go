package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"essayhub/internal/models"
)

type VerificationRepository interface {
	Create(userID int64, email, codeHash string, sentAt, expiresAt time.Time) (int64, error)
	GetLatestByUserID(userID int64) (*models.VerificationCode, error)
	CountRecentSends(userID int64, since time.Time) (int, error)
	IncrementAttempts(id int64) (int, error)
	MarkConfirmed(id int64) error
	ExpireNow(id int64) error
}

type verificationRepository struct {
	DB *sql.DB
}

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &verificationRepository{DB: db}
}

// Create — every send gets its own row; older rows stay for audit.
func (r *verificationRepository) Create(userID int64, email, codeHash string, sentAt, expiresAt time.Time) (int64, error) {
	const q = `
		INSERT INTO verification_codes (user_id, email, code_hash, sent_at, expires_at, confirmed, attempts)
		VALUES ($1, LOWER($2), $3, $4, $5, FALSE, 0)
		RETURNING id
	`
	var id int64
	if err := r.DB.QueryRow(q, userID, email, codeHash, sentAt, expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("verification create: %w", err)
	}
	return id, nil
}

// GetLatestByUserID — the newest send is the authoritative one.
func (r *verificationRepository) GetLatestByUserID(userID int64) (*models.VerificationCode, error) {
	const q = `
		SELECT id, user_id, email, code_hash, sent_at, expires_at, confirmed, attempts
		FROM verification_codes
		WHERE user_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	row := r.DB.QueryRow(q, userID)
	var v models.VerificationCode
	if err := row.Scan(&v.ID, &v.UserID, &v.Email, &v.CodeHash, &v.SentAt, &v.ExpiresAt, &v.Confirmed, &v.Attempts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verification latest: %w", err)
	}
	return &v, nil
}

// CountRecentSends — resend throttling window.
func (r *verificationRepository) CountRecentSends(userID int64, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE user_id = $1 AND sent_at >= $2
	`
	var c int
	if err := r.DB.QueryRow(q, userID, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("verification count recent: %w", err)
	}
	return c, nil
}

func (r *verificationRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("verification increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationRepository) MarkConfirmed(id int64) error {
	_, err := r.DB.Exec(`UPDATE verification_codes SET confirmed=TRUE WHERE id=$1`, id)
	return err
}

// ExpireNow — immediately invalidate the code (used on attempt exhaustion).
func (r *verificationRepository) ExpireNow(id int64) error {
	_, err := r.DB.Exec(`UPDATE verification_codes SET expires_at = NOW() WHERE id=$1`, id)
	return err
}
