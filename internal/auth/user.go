// internal/auth/user.go
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ihor-shndr/mychat/internal/db"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}

type Service struct {
	db        *db.DB
	jwtSecret string
}

func NewService(database *db.DB, jwtSecret string) *Service {
	return &Service{db: database, jwtSecret: jwtSecret}
}

// CreateUser registers a new user with a bcrypt-hashed password.
func (s *Service) CreateUser(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 4 {
		return nil, fmt.Errorf("password must be at least 4 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, username, string(hash), now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new user id: %w", err)
	}

	return s.GetUserByID(id)
}

func (s *Service) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, password_hash, created_at, last_seen_at
		FROM users WHERE id = ?
	`, id))
}

func (s *Service) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, password_hash, created_at, last_seen_at
		FROM users WHERE username = ?
	`, strings.TrimSpace(username)))
}

func (s *Service) scanUser(row *sql.Row) (*User, error) {
	var user User
	var createdAt string
	var lastSeenAt sql.NullString

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt, &lastSeenAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lastSeenAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSeenAt.String)
		user.LastSeenAt = &t
	}

	return &user, nil
}

// Authenticate verifies a username/password pair and updates last_seen_at.
func (s *Service) Authenticate(username, password string) (*User, error) {
	user, err := s.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.UpdateLastSeen(user.ID); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) ValidatePassword(user *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *Service) UpdateLastSeen(userID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec("UPDATE users SET last_seen_at = ? WHERE id = ?", now, userID)
	return err
}
