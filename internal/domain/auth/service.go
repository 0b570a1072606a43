package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sheetconsole/internal/domain/directory"
	"sheetconsole/internal/domain/match"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// SheetUsers checks credentials against the users tab.
type SheetUsers interface {
	Authenticate(ctx context.Context, username, password string) (directory.User, error)
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserContext `json:"-"`
}

// Service signs in either the bootstrap operator configured by environment
// or a user from the users tab.
type Service struct {
	Secret            string
	TTL               time.Duration
	AdminUsername     string
	AdminPasswordHash string
	Users             SheetUsers
	Now               func() time.Time
}

func NewService(secret string, ttl time.Duration, adminUsername, adminPasswordHash string, users SheetUsers) *Service {
	return &Service{
		Secret:            secret,
		TTL:               ttl,
		AdminUsername:     adminUsername,
		AdminPasswordHash: adminPasswordHash,
		Users:             users,
		Now:               time.Now,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	token, err := GenerateToken(s.Secret, Claims{
		UserID:   user.UserID,
		Username: user.Username,
		RoleName: user.RoleName,
	}, s.TTL)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: s.Now().Add(s.TTL), User: user}, nil
}

func (s *Service) authenticate(ctx context.Context, username, password string) (UserContext, error) {
	if username == "" || password == "" {
		return UserContext{}, ErrInvalidCredentials
	}
	if s.AdminUsername != "" && match.Equal(username, s.AdminUsername) {
		if CheckPassword(s.AdminPasswordHash, password) != nil {
			return UserContext{}, ErrInvalidCredentials
		}
		return UserContext{UserID: "operator:" + match.Slug(s.AdminUsername), Username: s.AdminUsername, RoleName: RoleAdmin}, nil
	}
	if s.Users == nil {
		return UserContext{}, ErrInvalidCredentials
	}

	u, err := s.Users.Authenticate(ctx, username, password)
	if errors.Is(err, directory.ErrInvalidCredentials) {
		return UserContext{}, ErrInvalidCredentials
	}
	if err != nil {
		return UserContext{}, fmt.Errorf("load users: %w", err)
	}
	role := RoleUser
	if match.Equal(u.Role, RoleAdmin) {
		role = RoleAdmin
	}
	return UserContext{UserID: "sheet:" + match.Slug(u.Username), Username: u.Username, RoleName: role}, nil
}
