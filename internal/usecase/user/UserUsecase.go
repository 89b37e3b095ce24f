package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/Yusufzhafir/illiquid-sim/internal/repository/user"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/rs/zerolog"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 64
)

var ErrInvalidRegistration = errors.New("invalid registration")

type UserUseCase interface {
	Register(ctx context.Context, username, password string) (int64, error)
	Login(ctx context.Context, username, password string) (*repository.User, error)
	GetProfile(ctx context.Context, userID int64) (*repository.User, error)
}

type userUseCaseImpl struct {
	repo   repository.UserRepository
	logger zerolog.Logger
}

type UserUseCaseOpts struct {
	UserRepo repository.UserRepository
	Logger   zerolog.Logger
}

func NewUserUseCase(opts UserUseCaseOpts) UserUseCase {
	return &userUseCaseImpl{
		repo:   opts.UserRepo,
		logger: opts.Logger.With().Str("component", "user").Logger(),
	}
}

func (uc *userUseCaseImpl) Register(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return 0, fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidRegistration, maxUsernameLength)
	}
	if len(password) < minPasswordLength {
		return 0, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLength)
	}

	id, err := uc.repo.Create(ctx, username, password)
	if err != nil {
		return 0, err
	}
	uc.logger.Info().Int64("user_id", id).Str("username", username).Msg("user registered")
	return id, nil
}

func (uc *userUseCaseImpl) Login(ctx context.Context, username, password string) (*repository.User, error) {
	u, err := uc.repo.VerifyPassword(ctx, strings.TrimSpace(username), password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		uc.logger.Debug().Str("username", username).Msg("login rejected")
	}
	return u, err
}

func (uc *userUseCaseImpl) GetProfile(ctx context.Context, userID int64) (*repository.User, error) {
	return uc.repo.GetByID(ctx, userID)
}
