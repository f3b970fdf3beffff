package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

type AuthStore interface {
	FindUserByEmail(email string) (*models.User, error)
	AddUser(u *models.User) error
	GetProfile(uid string) (*models.UserProfile, error)
	PutProfile(uid string, p *models.UserProfile) error
}

type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string
	UserID string
}

func NewAuthService(store AuthStore, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  30 * 24 * time.Hour,
	}
}

// Register creates the auth record and writes the initial profile document
// with a zero interview counter, mirroring the sign-up flow of the web app.
func (s *AuthService) Register(email, password string, profile models.UserProfile) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	existing, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	userID := s.idGen()
	now := s.now()
	if err := s.store.AddUser(&models.User{ID: userID, Email: email, PassHash: hash, CreatedAt: now}); err != nil {
		return nil, err
	}

	profile.Email = email
	profile.InterviewsCompleted = 0
	profile.CreatedAt = now.Format(time.RFC3339)
	if err := s.store.PutProfile(userID, &profile); err != nil {
		return nil, err
	}

	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(userID, email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: userID}, nil
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID}, nil
}

func (s *AuthService) Profile(uid string) (*models.UserProfile, error) {
	p, err := s.store.GetProfile(uid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("profile not found")
	}
	return p, nil
}

// UpdateProfile replaces the editable profile fields, preserving the
// interview counter and creation date.
func (s *AuthService) UpdateProfile(uid string, updated models.UserProfile) (*models.UserProfile, error) {
	current, err := s.Profile(uid)
	if err != nil {
		return nil, err
	}
	updated.Email = current.Email
	updated.InterviewsCompleted = current.InterviewsCompleted
	updated.CreatedAt = current.CreatedAt
	if err := s.store.PutProfile(uid, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
