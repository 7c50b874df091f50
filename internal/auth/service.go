package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faunatrack/server/internal/db"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	RoleRanger     = "ranger"
	RoleResearcher = "researcher"
	RoleAdmin      = "admin"
)

var knownRoles = map[string]bool{RoleRanger: true, RoleResearcher: true, RoleAdmin: true}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"-"`
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type Service struct {
	db     *db.DB
	uow    db.UnitOfWork
	tokens *TokenManager
	logger *slog.Logger
}

func NewService(database *db.DB, uow db.UnitOfWork, tokens *TokenManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: database, uow: uow, tokens: tokens, logger: logger}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = RoleRanger
	}
	if !knownRoles[role] {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{ID: uuid.NewString(), Username: username, Role: role, CreatedAt: time.Now().UTC()}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&existing)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup username: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, user.ID, user.Username, hash, user.Role, db.FormatTimestamp(user.CreatedAt)); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		return db.AppendAuditEvent(ctx, tx, user.ID, db.EventAuthRegister, "user", user.ID, map[string]any{
			"username": user.Username,
			"role":     user.Role,
		})
	})
	if err != nil {
		return User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	var (
		user         User
		passwordHash string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, role, password_hash
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Role, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := VerifyPassword(passwordHash, in.Password)
	if errors.Is(err, ErrMalformedHash) {
		s.logger.Warn("stored password hash is malformed", "user_id", user.ID)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	var (
		user      User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, role, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username, &user.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if user.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
		return User{}, fmt.Errorf("parse user timestamp: %w", err)
	}
	return user, nil
}
