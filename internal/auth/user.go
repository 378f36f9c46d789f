package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	stdtime "time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/kuitang/slugnotes/internal/db"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so changing them later keeps
// existing hashes verifiable.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024 // ~19 MiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// MinPasswordLength is the minimum accepted password length at signup.
const MinPasswordLength = 8

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

// realClock implements Clock using the real system time.
type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User represents a user account.
type User struct {
	ID        string
	Username  string
	CreatedAt stdtime.Time
}

// UserService handles user management operations.
type UserService struct {
	db    *db.DB
	clock Clock
}

// NewUserService creates a new user service.
func NewUserService(database *db.DB) *UserService {
	return &UserService{
		db:    database,
		clock: realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates a new account with username/password.
// Returns ErrUsernameTaken if the username is already claimed.
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.New().String()
	now := s.clock.Now().UTC()

	_, err = s.db.SQL().ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, username, passwordHash, now.Unix())
	if err != nil {
		if db.IsUniqueConstraintError(err, "users.username") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: now,
	}, nil
}

// VerifyLogin verifies username/password credentials for an existing account.
// Returns ErrInvalidCredentials if the user doesn't exist or the password is
// wrong; the two cases are not distinguished.
func (s *UserService) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	var user User
	var passwordHash string
	var createdAt int64

	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`, strings.TrimSpace(username)).Scan(&user.ID, &user.Username, &passwordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !VerifyPassword(password, passwordHash) {
		return nil, ErrInvalidCredentials
	}

	user.CreatedAt = stdtime.Unix(createdAt, 0).UTC()
	return &user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, userID string) (*User, error) {
	var user User
	var createdAt int64

	err := s.db.SQL().QueryRowContext(ctx, `
		SELECT id, username, created_at FROM users WHERE id = ?
	`, userID).Scan(&user.ID, &user.Username, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.CreatedAt = stdtime.Unix(createdAt, 0).UTC()
	return &user, nil
}

// HashPassword hashes a password with argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches an encoded argon2id hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}
	if parts[1] != "argon2id" {
		return false
	}
	if parts[2] != "v=19" {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	if len(hashBytes) == 0 || len(hashBytes) > 64 {
		return false
	}

	computed := argon2.IDKey([]byte(password), saltBytes, time, memory, threads, uint32(len(hashBytes)))
	return subtle.ConstantTimeCompare(computed, hashBytes) == 1
}
