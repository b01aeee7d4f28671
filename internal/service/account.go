package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/courier/internal/apperror"
	"github.com/sakif/courier/internal/auth"
	"github.com/sakif/courier/internal/model"
	"github.com/sakif/courier/internal/repository"
)

// Validation constants.
const (
	MinPasswordLength    = 8
	MaxPasswordBytes     = 72
	MaxDisplayNameLength = 64
	MaxBioLength         = 500

	// reconcileBatch bounds how many orphans one sweep handles.
	reconcileBatch = 100
)

// CreateAccountInput is the payload of account creation.
type CreateAccountInput struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,min=8,max=72"`
	DisplayName string `validate:"required,min=1,max=64"`
	Bio         string `validate:"max=500"`
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginResult bundles what a successful login hands back.
//
// CookieToken and HeaderToken are issued independently for the same user, so
// their signatures differ. Session.Token is always the header token; the
// cookie token only ever travels in the HttpOnly cookie.
type LoginResult struct {
	User        *model.User
	Session     model.Session
	CookieToken string
	HeaderToken string
}

// AccountService handles account creation, login and profile lookup.
//
// DEPENDENCIES (injected via NewAccountService):
//   - users, infos, orphans → persistence (one Store usually serves all three)
//   - passwords             → argon2id / bcrypt hashing
//   - tokens                → JWT issuance
//   - logger                → structured logging
type AccountService struct {
	users     repository.UserRepository
	infos     repository.UserInfoRepository
	orphans   repository.OrphanRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	validate  *validator.Validate
	events    EventRecorder
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates an AccountService backed by store.
func NewAccountService(
	store repository.Store,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	events EventRecorder,
	logger *slog.Logger,
) *AccountService {
	if events == nil {
		events = nopRecorder{}
	}
	return &AccountService{
		users:     store,
		infos:     store,
		orphans:   store,
		passwords: passwords,
		tokens:    tokens,
		validate:  validator.New(),
		events:    events,
		logger:    logger,
	}
}

// CreateAccount registers a user and its profile.
//
// The two inserts are not in one transaction (the stores are plain
// repositories), so creation is a two-step saga:
//
//  1. insert the User. On failure nothing else happens.
//  2. insert the UserInfo. On failure, compensate by deleting the User.
//     If the delete fails too, record an orphan entry; ReconcileOrphans
//     retries the delete later.
//
// The returned User never carries the password hash.
func (s *AccountService) CreateAccount(ctx context.Context, in CreateAccountInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if err := s.validateCreate(in); err != nil {
		s.events.RecordAccountEvent(EventCreateFailed)
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.events.RecordAccountEvent(EventCreateFailed)
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	// --- Step 1: User ---
	user := &model.User{Email: in.Email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.events.RecordAccountEvent(EventCreateFailed)
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("account creation rejected: email taken")
		} else {
			s.logger.Error("account creation failed",
				slog.String("kind", "store_failure"),
				slog.String("step", "create_user"),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.ValidationFailed("email", apperror.MsgCreateUserFailed)
	}

	// --- Step 2: UserInfo ---
	info := &model.UserInfo{ID: user.ID, DisplayName: in.DisplayName, Bio: in.Bio}
	if err := s.infos.CreateUserInfo(ctx, info); err != nil {
		s.logger.Error("profile creation failed",
			slog.String("kind", "store_failure"),
			slog.String("step", "create_user_info"),
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		s.events.RecordAccountEvent(EventCreateFailed)
		s.compensate(ctx, user.ID, err)
		return nil, apperror.ValidationFailed("displayName", apperror.MsgCreateInfoFailed)
	}

	s.events.RecordAccountEvent(EventAccountCreated)
	s.logger.Info("account created", slog.String("userID", user.ID))

	user.ClearPassword()
	return user, nil
}

// compensate undoes step 1 of CreateAccount. It runs even if the request
// context was cancelled.
func (s *AccountService) compensate(ctx context.Context, userID string, cause error) {
	ctx = context.WithoutCancel(ctx)

	err := s.users.DeleteUser(ctx, userID)
	if err == nil {
		s.events.RecordAccountEvent(EventCompensated)
		s.logger.Warn("rolled back user after profile failure", slog.String("userID", userID))
		return
	}
	s.logger.Error("compensating delete failed",
		slog.String("kind", "partial_creation"),
		slog.String("userID", userID),
		slog.String("error", err.Error()),
	)

	orphan := &model.OrphanedUser{UserID: userID, Reason: cause.Error()}
	if err := s.orphans.RecordOrphan(ctx, orphan); err != nil {
		s.logger.Error("orphaned user could not be recorded",
			slog.String("kind", "partial_creation"),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.events.RecordAccountEvent(EventOrphaned)
}

// Login checks credentials and issues the session token pair.
//
// ENUMERATION RESISTANCE:
// An unknown email and a wrong password return the same error value, and
// both paths run one password verification so their timing is similar.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	in := loginInput{Email: normalizeEmail(email), Password: password}
	if err := s.validate.Struct(in); err != nil {
		// Same hashing cost as a real miss.
		_ = s.passwords.Verify(s.dummy(), password)
		s.events.RecordAccountEvent(EventLoginFailed)
		return nil, apperror.InvalidCredentials()
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("login lookup failed",
				slog.String("kind", "store_failure"),
				slog.String("error", err.Error()),
			)
		}
		_ = s.passwords.Verify(s.dummy(), password)
		s.events.RecordAccountEvent(EventLoginFailed)
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidHash) {
			s.logger.Error("stored password hash unreadable", slog.String("userID", user.ID))
		}
		s.events.RecordAccountEvent(EventLoginFailed)
		return nil, apperror.InvalidCredentials()
	}

	cookieToken, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating cookie token: %w", err)
	}
	headerToken, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating header token: %w", err)
	}

	s.events.RecordAccountEvent(EventLoginSucceeded)
	s.logger.Info("user logged in", slog.String("userID", user.ID))

	user.ClearPassword()
	return &LoginResult{
		User:        user,
		Session:     model.Session{ID: user.ID, Token: headerToken},
		CookieToken: cookieToken,
		HeaderToken: headerToken,
	}, nil
}

// GetUserInfo returns the profile of id. A missing profile and a store
// failure both surface as the same 400-class validation error; only the
// store failure is logged as one.
func (s *AccountService) GetUserInfo(ctx context.Context, id string) (*model.UserInfo, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("searchId", apperror.MsgUserInfoNotFound)
	}

	info, err := s.infos.GetUserInfoByID(ctx, id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("profile lookup failed",
				slog.String("kind", "store_failure"),
				slog.String("userID", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.ValidationFailed("searchId", apperror.MsgUserInfoNotFound)
	}

	return info, nil
}

// ReconcileOrphans retries the delete of every recorded orphan and clears the
// entries it resolves. It returns how many were resolved.
func (s *AccountService) ReconcileOrphans(ctx context.Context) (int, error) {
	orphans, err := s.orphans.ListOrphans(ctx, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("service/account: listing orphans: %w", err)
	}

	resolved := 0
	var errs []error
	for _, o := range orphans {
		if err := s.users.DeleteUser(ctx, o.UserID); err != nil {
			errs = append(errs, fmt.Errorf("deleting user %s: %w", o.UserID, err))
			continue
		}
		if err := s.orphans.DeleteOrphan(ctx, o.UserID); err != nil {
			errs = append(errs, fmt.Errorf("clearing orphan %s: %w", o.UserID, err))
			continue
		}
		resolved++
		s.events.RecordAccountEvent(EventReconciled)
		s.logger.Info("orphaned user removed", slog.String("userID", o.UserID))
	}

	if len(errs) > 0 {
		return resolved, fmt.Errorf("service/account: reconciling orphans: %w", errors.Join(errs...))
	}
	return resolved, nil
}

// validateCreate turns validator errors into a single AppError naming the
// first offending field.
func (s *AccountService) validateCreate(in CreateAccountInput) error {
	if len(in.Password) > MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}

	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", "invalid input")
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Email":
		return apperror.ValidationFailed("email", "email must be a valid email address")
	case "Password":
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordBytes))
	case "DisplayName":
		return apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be between 1 and %d characters", MaxDisplayNameLength))
	case "Bio":
		return apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
	default:
		return apperror.ValidationFailed(strings.ToLower(fe.Field()), "invalid input")
	}
}

// dummy returns a hash used to spend verification time on unknown emails.
func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.Hash("courier-timing-equaliser")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
