// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/pkg/jwt"
	"prospect-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore resolves and updates login identities.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*staff.User, error)
	FindByID(ctx context.Context, id int64) (*staff.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type AuthService struct {
	users          UserStore
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	logger         *zap.Logger
}

func NewAuthService(users UserStore, jwtManager *jwt.Manager, sessionManager *session.Manager, rateLimiter *session.RateLimiter, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:          users,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		logger:         logger,
	}
}

// Login authenticates a dashboard user and opens a session
func (s *AuthService) Login(ctx context.Context, req *staff.LoginRequest, ip, userAgent string) (*staff.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, ip, req.Email)
	if err != nil {
		s.logger.Warn("login rate limit check failed", zap.Error(err))
	} else if !allowed {
		s.logger.Warn("login rate limited",
			zap.String("ip", ip), zap.Int64("remaining", remaining))
		return nil, xerrors.ErrRateLimited
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, xerrors.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	token, jti, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, string(user.Role), user.StaffID, req.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtManager.Generator.Ttl)

	if err := s.sessionManager.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		UserID:         user.ID,
		Email:          user.Email,
		Role:           string(user.Role),
		StaffID:        user.StaffID,
		Device:         req.Device,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, ip, req.Email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return &staff.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// ValidateToken verifies an access token against the signature, the
// blacklist, and the live session store.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	blacklisted, err := s.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if blacklisted {
		return nil, xerrors.ErrSessionExpired
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.UserID, claims.ID); err != nil {
		return nil, xerrors.ErrSessionExpired
	}

	return claims, nil
}

// Logout closes the session and blacklists the token. The blacklist
// entry lives for the full token lifetime, an upper bound on what
// remains.
func (s *AuthService) Logout(ctx context.Context, userID int64, jti string) error {
	if err := s.sessionManager.InvalidateSession(ctx, userID, jti); err != nil {
		s.logger.Warn("failed to invalidate session", zap.Error(err))
	}

	if err := s.sessionManager.BlacklistToken(ctx, jti, s.jwtManager.Generator.Ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	s.logger.Info("user logged out", zap.Int64("user_id", userID))
	return nil
}

// ChangePassword rotates a user's password and closes every open
// session.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req *staff.ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return xerrors.ErrUnauthorized
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	if err := s.sessionManager.InvalidateAllUserSessions(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate sessions after password change",
			zap.Int64("user_id", userID), zap.Error(err))
	}

	s.logger.Info("password changed", zap.Int64("user_id", userID))
	return nil
}

// GetProfile returns the logged-in user's identity.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*staff.User, error) {
	return s.users.FindByID(ctx, userID)
}
