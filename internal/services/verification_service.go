package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"essayhub/internal/repositories"
)

var (
	ErrResendThrottled      = errors.New("resend throttled")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrCodeExpired          = errors.New("code expired")
	ErrCodeInvalid          = errors.New("code invalid")
	ErrNoActiveVerification = errors.New("no active verification found")
)

const (
	maxResendsPerWindow    = 3
	resendWindow           = 10 * time.Minute
	maxConfirmAttempts     = 5
	defaultVerificationTTL = 5 * time.Minute
)

type VerificationService struct {
	Repo    repositories.VerificationRepository
	Users   repositories.UserRepository
	Email   EmailService
	CodeTTL time.Duration // 0 -> defaultVerificationTTL
}

func NewVerificationService(
	repo repositories.VerificationRepository,
	users repositories.UserRepository,
	email EmailService,
) *VerificationService {
	return &VerificationService{
		Repo:    repo,
		Users:   users,
		Email:   email,
		CodeTTL: defaultVerificationTTL,
	}
}

func (s *VerificationService) generateCode() string {
	src := rand.NewSource(time.Now().UnixNano())
	rnd := rand.New(src)
	return fmt.Sprintf("%06d", rnd.Intn(1000000))
}

func (s *VerificationService) ttl() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return defaultVerificationTTL
}

// SendCode creates a fresh code for the user and mails it. Mail failure is
// logged only — the code row exists and resend covers delivery problems.
func (s *VerificationService) SendCode(userID int64) error {
	user, err := s.Users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoActiveVerification
	}

	code := s.generateCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	if _, err := s.Repo.Create(userID, user.Email, string(hash), now, now.Add(s.ttl())); err != nil {
		return err
	}

	if s.Email != nil {
		go func(email, name, code string) {
			if err := s.Email.SendVerificationCode(email, name, code); err != nil {
				log.Printf("[verify][send] warning: code email to %s failed: %v", email, err)
			}
		}(user.Email, user.Name, code)
	}
	log.Printf("[verify][send] ok: user=%d", userID)
	return nil
}

// Resend throttles to maxResendsPerWindow codes per resendWindow.
func (s *VerificationService) Resend(userID int64) error {
	count, err := s.Repo.CountRecentSends(userID, time.Now().Add(-resendWindow))
	if err != nil {
		return err
	}
	if count >= maxResendsPerWindow {
		return ErrResendThrottled
	}
	return s.SendCode(userID)
}

// Confirm redeems the newest code exactly once and approves the user.
// A consumed or absent code yields ErrNoActiveVerification; the user's
// approved flag is never revoked by a failed re-confirmation.
func (s *VerificationService) Confirm(userID int64, code string) error {
	v, err := s.Repo.GetLatestByUserID(userID)
	if err != nil {
		return err
	}
	if v == nil || v.Confirmed {
		return ErrNoActiveVerification
	}
	if time.Now().After(v.ExpiresAt) {
		return ErrCodeExpired
	}

	attempts, err := s.Repo.IncrementAttempts(v.ID)
	if err != nil {
		return err
	}
	if attempts > maxConfirmAttempts {
		if err := s.Repo.ExpireNow(v.ID); err != nil {
			log.Printf("[verify][confirm] warning: expire after attempts failed: %v", err)
		}
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)) != nil {
		return ErrCodeInvalid
	}

	if err := s.Repo.MarkConfirmed(v.ID); err != nil {
		return err
	}
	if err := s.Users.Approve(userID); err != nil {
		return err
	}
	log.Printf("[verify][confirm] ok: user=%d", userID)
	return nil
}
