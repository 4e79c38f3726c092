package user

import (
	"context"
	"strings"

	"vipra-store/internal/logger"

	"go.uber.org/zap"
)

// TokenGenerator issues a session token for an authenticated user.
type TokenGenerator interface {
	Generate(userID uint, username string) (string, error)
}

type Service interface {
	Register(ctx context.Context, username, password, confirm string) (string, *User, error)
	Login(ctx context.Context, username, password string) (string, *User, error)
}

type service struct {
	repo   Repository
	tokens TokenGenerator
}

func NewService(repo Repository, tokens TokenGenerator) Service {
	return &service{repo: repo, tokens: tokens}
}

func (s *service) Register(ctx context.Context, username, password, confirm string) (string, *User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Register"),
	)

	username = strings.TrimSpace(username)
	if err := validateRegistration(username, password, confirm); err != nil {
		log.Info("registration rejected", zap.Error(err))
		return "", nil, err
	}

	hashed, err := HashPassword(password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return "", nil, err
	}

	u, err := s.repo.Create(ctx, username, hashed)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		log.Error("failed to generate token", zap.Uint("user_id", u.ID), zap.Error(err))
		return "", nil, err
	}

	log.Info("user registered", zap.Uint("user_id", u.ID))
	return token, u, nil
}

func (s *service) Login(ctx context.Context, username, password string) (string, *User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Login"),
	)

	u, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		log.Error("failed to load user", zap.Error(err))
		return "", nil, err
	}
	if u == nil || !CheckPasswordHash(password, u.Password) {
		log.Info("login rejected")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		log.Error("failed to generate token", zap.Uint("user_id", u.ID), zap.Error(err))
		return "", nil, err
	}

	return token, u, nil
}
