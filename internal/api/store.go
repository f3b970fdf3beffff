package api

import (
	"errors"
	"sort"
	"sync"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

type memoryStore struct {
	mu           sync.RWMutex
	usersByEmail map[string]*models.User
	profiles     map[string]*models.UserProfile
	configs      map[string]*models.InterviewConfig
	scratch      map[string][]models.EmotionSample
	results      map[string]*models.SessionResult
}

// NewMemoryStore returns the in-memory store used when no SQLite path is
// configured. Everything is lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{
		usersByEmail: map[string]*models.User{},
		profiles:     map[string]*models.UserProfile{},
		configs:      map[string]*models.InterviewConfig{},
		scratch:      map[string][]models.EmotionSample{},
		results:      map[string]*models.SessionResult{},
	}
}

var _ Store = (*memoryStore)(nil)

func (s *memoryStore) AddUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return errors.New("user exists")
	}
	copy := *u
	s.usersByEmail[u.Email] = &copy
	return nil
}

func (s *memoryStore) FindUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.usersByEmail[email]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) GetProfile(uid string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[uid]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) PutProfile(uid string, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *p
	s.profiles[uid] = &copy
	return nil
}

func (s *memoryStore) GetConfig(uid string) (*models.InterviewConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.configs[uid]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) PutConfig(uid string, c *models.InterviewConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *c
	s.configs[uid] = &copy
	return nil
}

func (s *memoryStore) AddScratchSample(sessionID string, sample models.EmotionSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratch[sessionID] = append(s.scratch[sessionID], sample)
	return nil
}

func (s *memoryStore) ListScratchSamples(sessionID string) ([]models.EmotionSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EmotionSample(nil), s.scratch[sessionID]...), nil
}

func (s *memoryStore) ClearScratchSamples(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scratch, sessionID)
	return nil
}

func (s *memoryStore) PutResult(r *models.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *r
	s.results[r.ID] = &copy
	return nil
}

func (s *memoryStore) GetResult(id string) (*models.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.results[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, nil
}

func (s *memoryStore) ListResultsByUser(uid string, limit int) ([]*models.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SessionResult
	for _, r := range s.results {
		if r.UserID == uid {
			copy := *r
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
