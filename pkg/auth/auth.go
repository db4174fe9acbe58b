// Package auth checks credentials against stored bcrypt hashes and hands out
// bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/logger"
	"docintake/pkg/token"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUnauthorized is returned for unknown users and wrong passwords alike.
	ErrUnauthorized = errors.New("invalid credentials")
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrWeakPassword = errors.New("password too short (min 6)")
	ErrBadUsername  = errors.New("username required (max 30 chars)")
)

const minPasswordLen = 6

type Service struct {
	db     *gorm.DB
	tokens *token.Issuer
	audit  audit.Recorder
	log    *logger.Logger
	cost   int
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func New(db *gorm.DB, tokens *token.Issuer, rec audit.Recorder, log *logger.Logger, opts ...Option) *Service {
	s := &Service{db: db, tokens: tokens, audit: rec, log: log, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login verifies username/password and issues a token. Every attempt is audited.
func (s *Service) Login(ctx context.Context, username, password string) (token.Token, error) {
	username = strings.TrimSpace(username)
	var user models.User
	err := s.db.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error("login lookup failed", "username", username, "error", err)
			s.recordAttempt(ctx, "login", nil, username, "lookup failed")
			return token.Token{}, fmt.Errorf("lookup user: %w", err)
		}
		s.recordAttempt(ctx, "login", nil, username, "unknown user")
		return token.Token{}, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		uid := user.Subject()
		s.recordAttempt(ctx, "login", &uid, username, "wrong password")
		return token.Token{}, ErrUnauthorized
	}

	tok, err := s.tokens.Issue(user.Subject(), user.Role.Name)
	if err != nil {
		return token.Token{}, fmt.Errorf("issue token: %w", err)
	}
	uid := user.Subject()
	s.recordAttempt(ctx, "login", &uid, username, "")
	return tok, nil
}

// Refresh trades a still-valid token for a fresh one.
func (s *Service) Refresh(ctx context.Context, raw string) (token.Token, error) {
	tok, err := s.tokens.Refresh(raw)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, token.ErrTokenExpired) {
			reason = "expired token"
		}
		s.recordAttempt(ctx, "token_refresh", nil, "", reason)
		return token.Token{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	sub := tok.Claims.Subject
	s.recordAttempt(ctx, "token_refresh", &sub, "", "")
	return tok, nil
}

// recordAttempt writes one user-interaction event. An empty reason means success.
func (s *Service) recordAttempt(ctx context.Context, action string, userID *string, username, reason string) {
	md := map[string]any{"action": action, "outcome": "success"}
	desc := action + " succeeded"
	if reason != "" {
		md["outcome"] = "failure"
		md["reason"] = reason
		desc = action + " failed: " + reason
	}
	if username != "" {
		md["username"] = username
	}
	s.audit.Record(ctx, audit.Event{
		Type:        audit.UserInteraction,
		Description: desc,
		UserID:      userID,
		Metadata:    md,
	})
}

// EnsureRoles creates the master roles that are missing.
func (s *Service) EnsureRoles(ctx context.Context) error {
	for _, r := range models.DefaultRoles() {
		role := r
		if err := s.db.WithContext(ctx).Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("ensure role %s: %w", role.Name, err)
		}
	}
	return nil
}

// CreateUser hashes password and stores a new user with the given role,
// creating the role when needed.
func (s *Service) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 30 {
		return nil, ErrBadUsername
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if role == "" {
		role = models.RoleViewer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrUserExists
		}
		r := models.Role{Name: role}
		if err := tx.Where("name = ?", role).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("ensure role %s: %w", role, err)
		}
		user = models.User{Username: username, HashedPassword: hash, RoleID: &r.ID, Role: r}
		if err := tx.Omit("Role").Create(&user).Error; err != nil {
			// lost a race with a concurrent create
			if isUniqueViolation(err) {
				return ErrUserExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", "username", username, "role", role, "id", user.ID)
	return &user, nil
}

// EnsureUser creates username when absent and leaves an existing account untouched.
func (s *Service) EnsureUser(ctx context.Context, username, password, role string) (created bool, err error) {
	_, err = s.CreateUser(ctx, username, password, role)
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", strings.TrimSpace(username)).
		Update("hashed_password", hash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint")
}
