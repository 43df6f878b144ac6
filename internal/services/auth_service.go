package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/auth"
	"github.com/contextmeet/contextmeet/internal/calendar"
	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/crypto"
	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
	"github.com/contextmeet/contextmeet/pkg/metrics"
)

// RegisterInput describes the fields accepted when creating an account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Timezone string
}

// UpdateProfileInput enumerates mutable account attributes.
type UpdateProfileInput struct {
	FullName       *string
	Timezone       *string
	TelegramChatID *string
	Preferences    *models.Preferences
}

// AuthResult bundles the account with freshly issued tokens.
type AuthResult struct {
	User   *models.User
	Tokens *auth.TokenPair
}

// AuthService manages accounts, credentials, and the Google sign-in flow.
type AuthService struct {
	db            *gorm.DB
	jwt           *auth.JWTService
	calendar      *calendar.Client
	encryptionKey []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(db *gorm.DB, jwt *auth.JWTService, cal *calendar.Client, encryptionKey []byte) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{
		db:            db,
		jwt:           jwt,
		calendar:      cal,
		encryptionKey: encryptionKey,
	}, nil
}

// Register provisions a new account with a hashed password and default preferences.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	timezone := strings.TrimSpace(input.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}

	user := &models.User{
		Email:       email,
		Password:    hashed,
		FullName:    strings.TrimSpace(input.FullName),
		Timezone:    timezone,
		Preferences: toJSON(models.DefaultPreferences()),
		IsActive:    true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue tokens: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("auth service: record login: %w", err)
	}
	user.LastLoginAt = &now

	tokens, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue tokens: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{User: &user, Tokens: tokens}, nil
}

// GetUser loads an account by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: get user: %w", err)
	}
	return &user, nil
}

// Refresh trades a valid refresh token for a fresh token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue tokens: %w", err)
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// UpdateProfile applies partial updates to the account.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*input.FullName)
	}
	if input.Timezone != nil {
		updates["timezone"] = strings.TrimSpace(*input.Timezone)
	}
	if input.TelegramChatID != nil {
		updates["telegram_chat_id"] = strings.TrimSpace(*input.TelegramChatID)
	}
	if input.Preferences != nil {
		updates["preferences"] = toJSON(*input.Preferences)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: update profile: %w", err)
	}
	return s.GetUser(ctx, userID)
}

// GoogleCallback exchanges the authorization code, resolves the Google
// identity, and signs the user in, creating the account on first sight.
// Calendar tokens are encrypted before they are stored.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	if s.calendar == nil {
		return nil, apperrors.ErrCalendarNotConnected
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.NewBadRequest("authorization code is required")
	}

	token, err := s.calendar.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := s.calendar.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, apperrors.ErrUpstream.WithInternal(err)
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		randomPassword, err := crypto.GenerateToken(32)
		if err != nil {
			return nil, fmt.Errorf("auth service: generate password: %w", err)
		}
		hashed, err := crypto.HashPassword(randomPassword)
		if err != nil {
			return nil, fmt.Errorf("auth service: hash password: %w", err)
		}

		user = models.User{
			Email:       email,
			Password:    hashed,
			FullName:    info.Name,
			Timezone:    "UTC",
			Preferences: toJSON(models.DefaultPreferences()),
			IsActive:    true,
		}
		if err := s.applyGoogleToken(&user, token); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("auth service: create google user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("auth service: find user: %w", err)
	default:
		if err := s.applyGoogleToken(&user, token); err != nil {
			return nil, err
		}
		err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"google_access_token":  user.GoogleAccessToken,
			"google_refresh_token": user.GoogleRefreshToken,
			"google_token_expiry":  user.GoogleTokenExpiry,
			"calendar_connected":   true,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("auth service: update google user: %w", err)
		}
	}

	tokens, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue tokens: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{User: &user, Tokens: tokens}, nil
}

// applyGoogleToken encrypts and stores OAuth tokens on the user record.
func (s *AuthService) applyGoogleToken(user *models.User, token *oauth2.Token) error {
	encryptedAccess, err := crypto.Encrypt([]byte(token.AccessToken), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("auth service: encrypt access token: %w", err)
	}
	user.GoogleAccessToken = encryptedAccess

	if token.RefreshToken != "" {
		encryptedRefresh, err := crypto.Encrypt([]byte(token.RefreshToken), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("auth service: encrypt refresh token: %w", err)
		}
		user.GoogleRefreshToken = encryptedRefresh
	}

	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		user.GoogleTokenExpiry = &expiry
	}
	user.CalendarConnected = true
	return nil
}

// googleTokenFor decrypts the stored OAuth token of a user.
func googleTokenFor(user *models.User, encryptionKey []byte) (*oauth2.Token, error) {
	if !user.CalendarConnected || user.GoogleAccessToken == "" {
		return nil, apperrors.ErrCalendarNotConnected
	}

	access, err := crypto.Decrypt(user.GoogleAccessToken, encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	token := &oauth2.Token{AccessToken: string(access)}
	if user.GoogleRefreshToken != "" {
		refresh, err := crypto.Decrypt(user.GoogleRefreshToken, encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
		token.RefreshToken = string(refresh)
	}
	if user.GoogleTokenExpiry != nil {
		token.Expiry = *user.GoogleTokenExpiry
	}
	return token, nil
}

// PreferencesFor decodes the stored preferences, falling back to defaults.
func PreferencesFor(user *models.User) models.Preferences {
	if len(user.Preferences) == 0 {
		return models.DefaultPreferences()
	}
	var prefs models.Preferences
	if err := json.Unmarshal(user.Preferences, &prefs); err != nil {
		return models.DefaultPreferences()
	}
	if len(prefs.Channels) == 0 {
		prefs.Channels = []string{models.ChannelEmail}
	}
	if len(prefs.ReminderOffsets) == 0 {
		prefs.ReminderOffsets = []int{15}
	}
	return prefs
}
