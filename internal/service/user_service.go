package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/oauth"
)

type UserService struct {
	repo repository.UsersRepositoryI
}

func NewUserService(usersRepo repository.UsersRepositoryI) *UserService {
	return &UserService{
		repo: usersRepo,
	}
}

func (us *UserService) Register(ctx context.Context, req *RegisterRequest) (*entity.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user := entity.User{
		Email:     req.Email,
		Name:      req.Name,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
	}
	if req.Username != "" {
		user.Username = &req.Username
	}
	PrepareNewUser(&user)
	passwordHash, err := Hash(req.Password)
	if err != nil {
		return nil, errors.New("hashing password error: " + err.Error())
	}
	user.PasswordHash = &passwordHash
	if err = us.repo.Create(ctx, &user); err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrEmailTaken), errors.Is(err, errorvalues.ErrUsernameTaken),
			errors.Is(err, errorvalues.ErrUserExists):
			return nil, err
		}
		return nil, errors.New("repository creating error: " + err.Error())
	}
	return &user, nil
}

func (us *UserService) LoginByUsername(ctx context.Context, username, password string) (*entity.User, error) {
	user, err := us.repo.FindByUsername(ctx, strings.TrimSpace(username))
	return us.login(user, err, password)
}

func (us *UserService) LoginByEmail(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := us.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	return us.login(user, err, password)
}

// login hides whether the account exists behind ErrWrongCredentials.
func (us *UserService) login(user *entity.User, findErr error, password string) (*entity.User, error) {
	if findErr != nil {
		if errors.Is(findErr, errorvalues.ErrUserNotFound) {
			return nil, errorvalues.ErrWrongCredentials
		}
		return nil, errors.New("repository searching error: " + findErr.Error())
	}
	if !checkPassword(user.PasswordHash, password) {
		return nil, errorvalues.ErrWrongCredentials
	}
	return user, nil
}

func (us *UserService) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	return user, nil
}

func (us *UserService) ClaimUsername(ctx context.Context, id uuid.UUID, req *ClaimUsernameRequest) (*entity.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	taken, err := us.repo.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, errors.New("repository searching error: " + err.Error())
	}
	if taken {
		// resubmitting the caller's own handle is a no-op
		if user, err := us.GetByID(ctx, id); err == nil && user.UsernameOrEmpty() == req.Username {
			return user, nil
		}
		return nil, errorvalues.ErrUsernameTaken
	}
	if err = us.repo.SetUsername(ctx, id, req.Username); err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUsernameTaken), errors.Is(err, errorvalues.ErrUserNotFound):
			return nil, err
		}
		return nil, errors.New("repository updating error: " + err.Error())
	}
	return us.GetByID(ctx, id)
}

func (us *UserService) SignInWithOAuth(ctx context.Context, profile *oauth.Profile) (*entity.User, error) {
	if profile == nil || profile.ID == "" || profile.Email == "" {
		return nil, errors.New("incomplete oauth profile")
	}
	user, err := us.repo.FindByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errorvalues.ErrUserNotFound) {
		return nil, errors.New("repository searching error: " + err.Error())
	}

	user, err = us.repo.FindByEmail(ctx, strings.ToLower(profile.Email))
	switch {
	case err == nil:
		return us.linkGoogle(ctx, user, profile)
	case !errors.Is(err, errorvalues.ErrUserNotFound):
		return nil, errors.New("repository searching error: " + err.Error())
	}

	googleID := profile.ID
	user = &entity.User{
		Email:     strings.ToLower(profile.Email),
		Name:      profile.Name,
		Firstname: profile.GivenName,
		Lastname:  profile.FamilyName,
		GoogleID:  &googleID,
	}
	PrepareNewUser(user)
	if user.HasUsername() {
		taken, err := us.repo.UsernameExists(ctx, user.UsernameOrEmpty())
		if err != nil {
			return nil, errors.New("repository searching error: " + err.Error())
		}
		if taken {
			// left for the onboarding step
			user.Username = nil
		}
	}
	err = us.repo.Create(ctx, user)
	if errors.Is(err, errorvalues.ErrUsernameTaken) {
		slog.Warn("derived username taken concurrently, deferring to onboarding", slog.String("email", user.Email))
		user.Username = nil
		err = us.repo.Create(ctx, user)
	}
	if err != nil {
		if errors.Is(err, errorvalues.ErrEmailTaken) || errors.Is(err, errorvalues.ErrUserExists) {
			return nil, err
		}
		return nil, errors.New("repository creating error: " + err.Error())
	}
	return user, nil
}

func (us *UserService) linkGoogle(ctx context.Context, user *entity.User, profile *oauth.Profile) (*entity.User, error) {
	if !profile.EmailVerified {
		return nil, fmt.Errorf("%w: google email is not verified", errorvalues.ErrUserExists)
	}
	if err := us.repo.LinkGoogle(ctx, user.ID, profile.ID); err != nil {
		if errors.Is(err, errorvalues.ErrUserExists) || errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository updating error: " + err.Error())
	}
	googleID := profile.ID
	user.GoogleID = &googleID
	return user, nil
}
