package profiles

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-events/internal/auth"
	"ms-events/internal/clock"
	"ms-events/internal/events"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

var (
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type DBLayer interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type TokenIssuer interface {
	IssueAccess(userID string) (string, error)
	IssueRefresh(userID string) (string, string, error)
	Parse(raw, tokenType string) (*auth.Claims, error)
	RefreshTTL() time.Duration
}

type RefreshTokens interface {
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Consume(ctx context.Context, tokenID string) (string, error)
}

type Service struct {
	DB       DBLayer
	Issuer   TokenIssuer
	Refresh  RefreshTokens
	Clock    clock.Clock
	Logger   *logger.Logger
	hashCost int
}

func NewService(db DBLayer, issuer TokenIssuer, refresh RefreshTokens, clk clock.Clock, log *logger.Logger, hashCost int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{DB: db, Issuer: issuer, Refresh: refresh, Clock: clk, Logger: log, hashCost: hashCost}
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

func check(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &events.ValidationError{}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			verr.Add(fe.Field(), "This field is required.")
		case "email":
			verr.Add(fe.Field(), "Enter a valid email address.")
		case "max":
			verr.Add(fe.Field(), fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param()))
		default:
			verr.Add(fe.Field(), fmt.Sprintf("Failed on the %q rule.", fe.Tag()))
		}
	}
	return verr
}

// Signup registers a new user with a bcrypt password hash.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.UserSummary, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := check(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			verr := &events.ValidationError{}
			verr.Add("username", "A user with that username already exists.")
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.Logger.Info("PROFILE", fmt.Sprintf("Registered user %s (%s)", user.Username, user.ID))
	summary := user.Summary()
	return &summary, nil
}

// ObtainToken exchanges credentials for an access/refresh pair.
func (s *Service) ObtainToken(ctx context.Context, req models.TokenRequest) (*models.TokenPair, error) {
	if err := check(req); err != nil {
		return nil, err
	}

	user, err := s.DB.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, ErrUserNotFound) {
		s.Logger.LogSecurity("LOGIN", "unknown username "+req.Username)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.Logger.LogSecurity("LOGIN", "bad password for "+req.Username)
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user.ID)
}

// Rotate consumes a refresh token and issues a fresh pair. The presented
// refresh token cannot be used again.
func (s *Service) Rotate(ctx context.Context, req models.RefreshRequest) (*models.TokenPair, error) {
	if err := check(req); err != nil {
		return nil, err
	}

	claims, err := s.Issuer.Parse(req.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	owner, err := s.Refresh.Consume(ctx, claims.ID)
	if err != nil {
		s.Logger.LogSecurity("REFRESH", "refresh token reuse or expiry for "+claims.Subject)
		return nil, err
	}
	if owner != claims.Subject {
		return nil, fmt.Errorf("%w: token owner mismatch", auth.ErrUnauthenticated)
	}

	return s.issuePair(ctx, claims.Subject)
}

func (s *Service) issuePair(ctx context.Context, userID string) (*models.TokenPair, error) {
	access, err := s.Issuer.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, tokenID, err := s.Issuer.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh.Save(ctx, tokenID, userID, s.Issuer.RefreshTTL()); err != nil {
		return nil, err
	}
	return &models.TokenPair{Access: access, Refresh: refresh}, nil
}
