// Package db provides the SQLite-backed store. Structured documents
// (profiles, configs, samples, results) are stored as JSON columns; only the
// keys queried by the API get their own columns.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/git-sakshii/RealPrep-AI-App/internal/api"
	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Open opens the database file, applies migrations, and returns the store.
func Open(path, migrationsDir string) (api.Store, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	store, err := NewSQLiteStore(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := RunMigrations(sqlDB, migrationsDir); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

var _ api.Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) AddUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PassHash, u.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) FindUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, email, pass_hash, created_at FROM users WHERE email = ?`, email)
	var u models.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Email, &u.PassHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (s *SQLiteStore) GetProfile(uid string) (*models.UserProfile, error) {
	return getDoc[models.UserProfile](s.db, `SELECT doc FROM profiles WHERE user_id = ?`, uid)
}

func (s *SQLiteStore) PutProfile(uid string, p *models.UserProfile) error {
	return putDoc(s.db,
		`INSERT INTO profiles (user_id, doc) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc`, uid, p)
}

func (s *SQLiteStore) GetConfig(uid string) (*models.InterviewConfig, error) {
	return getDoc[models.InterviewConfig](s.db, `SELECT doc FROM interview_configs WHERE user_id = ?`, uid)
}

func (s *SQLiteStore) PutConfig(uid string, c *models.InterviewConfig) error {
	return putDoc(s.db,
		`INSERT INTO interview_configs (user_id, doc) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc`, uid, c)
}

func (s *SQLiteStore) AddScratchSample(sessionID string, sample models.EmotionSample) error {
	doc, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO scratch_samples (session_id, doc) VALUES (?, ?)`, sessionID, string(doc))
	return err
}

func (s *SQLiteStore) ListScratchSamples(sessionID string) ([]models.EmotionSample, error) {
	rows, err := s.db.Query(`SELECT doc FROM scratch_samples WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.EmotionSample
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var sample models.EmotionSample
		if err := json.Unmarshal([]byte(doc), &sample); err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearScratchSamples(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM scratch_samples WHERE session_id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) PutResult(r *models.SessionResult) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO results (id, user_id, created_at, doc) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		r.ID, r.UserID, r.CreatedAt.Format(time.RFC3339), string(doc))
	return err
}

func (s *SQLiteStore) GetResult(id string) (*models.SessionResult, error) {
	return getDoc[models.SessionResult](s.db, `SELECT doc FROM results WHERE id = ?`, id)
}

func (s *SQLiteStore) ListResultsByUser(uid string, limit int) ([]*models.SessionResult, error) {
	rows, err := s.db.Query(
		`SELECT doc FROM results WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.SessionResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r models.SessionResult
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func getDoc[T any](db *sql.DB, query, key string) (*T, error) {
	var doc string
	if err := db.QueryRow(query, key).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func putDoc(db *sql.DB, query, key string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = db.Exec(query, key, string(doc))
	return err
}
