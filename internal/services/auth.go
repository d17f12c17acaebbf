package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/notify"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer       = "scrumboard-backend"
	MinPasswordLength = 8

	msgInvalidToken = "invalid or expired token"
)

type CreateAccountRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type AuthService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.User, error)
	ConfirmAccount(ctx context.Context, token string) error
	RequestConfirmationCode(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ValidateToken(ctx context.Context, token string) error
	UpdatePasswordWithToken(ctx context.Context, token, password, confirmation string) error
	Authenticate(ctx context.Context, bearer string) (*models.User, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type AuthOptions struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
	BCryptCost     int
}

type AuthServiceImpl struct {
	store    repositories.Store
	notifier notify.Notifier
	opts     AuthOptions
	now      func() time.Time
	logger   log.FieldLogger
}

func NewAuthService(store repositories.Store, notifier notify.Notifier, opts AuthOptions, logger log.FieldLogger) *AuthServiceImpl {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 24 * time.Hour
	}
	if opts.BCryptCost == 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{
		store:    store,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func validatePassword(password, confirmation string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if password != confirmation {
		return NewValidationError("passwords do not match")
	}
	return nil
}

func (s *AuthServiceImpl) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	if name == "" {
		return nil, NewValidationError("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewValidationError("a valid email is required")
	}
	if err := validatePassword(req.Password, req.PasswordConfirmation); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return nil, NewConflictError("user already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, NewInternalError(err)
	}

	hashed, err := HashPassword(req.Password, s.opts.BCryptCost)
	if err != nil {
		return nil, NewInternalError(err)
	}

	user := &models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    email,
		Password: hashed,
		Name:     name,
		Role:     models.RoleScrumTeam,
	}

	var token *models.Token
	err = s.store.WithinTx(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		token, err = s.issueToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, NewConflictError("user already registered")
		}
		return nil, NewInternalError(err)
	}

	s.notify(ctx, func() error { return s.notifier.SendConfirmation(ctx, user, token.Token) })
	return user, nil
}

func (s *AuthServiceImpl) ConfirmAccount(ctx context.Context, code string) error {
	token, err := s.store.Tokens().FindByToken(ctx, code, s.now())
	if err != nil {
		return storeError(err, msgInvalidToken)
	}

	return storeError(s.store.WithinTx(ctx, func(tx repositories.Store) error {
		user, err := tx.Users().FindByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		user.Confirmed = true
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return tx.Tokens().Delete(ctx, token.ID)
	}), msgInvalidToken)
}

func (s *AuthServiceImpl) RequestConfirmationCode(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return storeError(err, "user is not registered")
	}
	if user.Confirmed {
		return NewAuthorizationError("user is already confirmed")
	}

	token, err := s.issueToken(ctx, s.store, user.ID)
	if err != nil {
		return NewInternalError(err)
	}
	s.notify(ctx, func() error { return s.notifier.SendConfirmation(ctx, user, token.Token) })
	return nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.Users().FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", storeError(err, "user not found")
	}

	if !user.Confirmed {
		token, err := s.issueToken(ctx, s.store, user.ID)
		if err != nil {
			return "", NewInternalError(err)
		}
		s.notify(ctx, func() error { return s.notifier.SendConfirmation(ctx, user, token.Token) })
		return "", NewAuthorizationError("account not confirmed, a new confirmation code was sent to your email")
	}

	if !VerifyPassword(user.Password, password) {
		return "", NewUnauthenticatedError("incorrect password")
	}

	return s.GenerateToken(user)
}

func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.Users().FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return storeError(err, "user is not registered")
	}

	token, err := s.issueToken(ctx, s.store, user.ID)
	if err != nil {
		return NewInternalError(err)
	}
	s.notify(ctx, func() error { return s.notifier.SendPasswordReset(ctx, user, token.Token) })
	return nil
}

func (s *AuthServiceImpl) ValidateToken(ctx context.Context, code string) error {
	_, err := s.store.Tokens().FindByToken(ctx, code, s.now())
	return storeError(err, msgInvalidToken)
}

func (s *AuthServiceImpl) UpdatePasswordWithToken(ctx context.Context, code, password, confirmation string) error {
	if err := validatePassword(password, confirmation); err != nil {
		return err
	}

	token, err := s.store.Tokens().FindByToken(ctx, code, s.now())
	if err != nil {
		return storeError(err, msgInvalidToken)
	}

	hashed, err := HashPassword(password, s.opts.BCryptCost)
	if err != nil {
		return NewInternalError(err)
	}

	return storeError(s.store.WithinTx(ctx, func(tx repositories.Store) error {
		user, err := tx.Users().FindByID(ctx, token.UserID)
		if err != nil {
			return err
		}
		user.Password = hashed
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return tx.Tokens().Delete(ctx, token.ID)
	}), msgInvalidToken)
}

// GenerateToken signs an HS256 access token for user.
func (s *AuthServiceImpl) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role),
		"iss":     TokenIssuer,
		"iat":     now.Unix(),
		"exp":     now.Add(s.opts.AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", NewInternalError(err)
	}
	return signed, nil
}

// ParseToken verifies the signature, issuer and expiry and returns the user id.
func (s *AuthServiceImpl) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, NewUnauthenticatedError("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, NewUnauthenticatedError("invalid token claims")
	}
	raw, _ := claims["user_id"].(string)
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, NewUnauthenticatedError("invalid token claims")
	}
	return id, nil
}

// Authenticate resolves the user behind a bearer token.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, bearer string) (*models.User, error) {
	id, err := s.ParseToken(bearer)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewUnauthenticatedError("user not registered")
		}
		return nil, NewInternalError(err)
	}
	return user, nil
}

func (s *AuthServiceImpl) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.store.Tokens().DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, NewInternalError(err)
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("Purged expired tokens")
	}
	return n, nil
}

func (s *AuthServiceImpl) issueToken(ctx context.Context, store repositories.Store, userID uuid.UUID) (*models.Token, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	token := &models.Token{
		ID:        uuid.Must(uuid.NewV4()),
		Token:     code,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(models.TokenTTL),
	}
	if err := store.Tokens().Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// notify runs a delivery call and logs instead of failing the request.
func (s *AuthServiceImpl) notify(_ context.Context, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.logger.WithError(err).Warn("Failed to dispatch notification")
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
