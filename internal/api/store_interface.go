package api

import (
	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

// Store is the persistence surface wired into the services: auth records,
// profile documents, last-used interview configuration, scratch emotion
// samples held during a live session, and finalized results. Both the
// in-memory store and the SQLite store satisfy it.
type Store interface {
	AddUser(u *models.User) error
	FindUserByEmail(email string) (*models.User, error)

	GetProfile(uid string) (*models.UserProfile, error)
	PutProfile(uid string, p *models.UserProfile) error

	GetConfig(uid string) (*models.InterviewConfig, error)
	PutConfig(uid string, c *models.InterviewConfig) error

	AddScratchSample(sessionID string, sample models.EmotionSample) error
	ListScratchSamples(sessionID string) ([]models.EmotionSample, error)
	ClearScratchSamples(sessionID string) error

	PutResult(r *models.SessionResult) error
	GetResult(id string) (*models.SessionResult, error)
	ListResultsByUser(uid string, limit int) ([]*models.SessionResult, error)
}
