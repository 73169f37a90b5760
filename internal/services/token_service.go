package services

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tododeck/tododeck-backend/internal/config"
	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired refresh token")

	// ErrTokenReplayed marks a refresh token that was already rotated away.
	// Handlers must surface it exactly like ErrInvalidToken; the distinction
	// exists only for logging and the family-wide revocation it triggers.
	ErrTokenReplayed = errors.New("refresh token replay detected")
)

// TokenService issues access/refresh token pairs and rotates refresh tokens
// on use. Each refresh token is single-use: rotation revokes the presented
// token and issues a new one in the same family. Presenting an already
// revoked token is treated as theft and kills the whole family.
type TokenService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewTokenService(db *gorm.DB, cfg *config.Config) *TokenService {
	return &TokenService{db: db, cfg: cfg}
}

// IssueTokenPair creates a fresh token pair for user under a new family.
func (s *TokenService) IssueTokenPair(user *models.User, deviceInfo string) (*dto.TokenResponse, error) {
	family := uuid.NewString()
	return s.issue(s.db, user, family, deviceInfo)
}

// Rotate exchanges a valid refresh token for a new pair in the same family.
func (s *TokenService) Rotate(refreshToken, deviceInfo string) (*dto.TokenResponse, error) {
	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	family, _ := claims["family"].(string)
	if sub == "" || family == "" {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := hashToken(refreshToken)

	// An unknown hash is an invalid token; a storage fault is not, and
	// must propagate instead of masquerading as a rejected rotation.
	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", tokenHash).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if stored.Revoked {
		// The token was already consumed by a rotation. Someone is replaying
		// it, so every descendant of the original login is suspect.
		if err := s.RevokeFamily(stored.TokenFamily); err != nil {
			slog.Error("failed to revoke token family", "error", err, "family", stored.TokenFamily)
		}
		slog.Warn("refresh token replay detected", "user_id", stored.UserID.String(), "family", stored.TokenFamily)
		return nil, ErrTokenReplayed
	}

	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	// Revoke-old plus create-new must be visible atomically, so both run in
	// one transaction. The conditional update also makes concurrent rotations
	// of the same token race to a single winner.
	var pair *dto.TokenResponse
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = false", stored.ID).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}

		pair, err = s.issue(tx, &user, stored.TokenFamily, deviceInfo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Revoke marks the record behind one refresh token as revoked (logout). The
// record is kept so a later presentation of the token is seen as a replay.
func (s *TokenService) Revoke(refreshToken string, userID uuid.UUID) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND user_id = ?", hashToken(refreshToken), userID).
		Update("revoked", true).Error
}

// RevokeAllForUser deletes every refresh token owned by a user, across all
// families (logout from all devices).
func (s *TokenService) RevokeAllForUser(userID uuid.UUID) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

// RevokeFamily revokes every token in a lineage. Used as the replay response.
func (s *TokenService) RevokeFamily(family string) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("token_family = ?", family).
		Update("revoked", true).Error
}

// SweepExpired deletes all records whose expiry has passed and returns the
// number removed. Safe to run at any time, in any order.
func (s *TokenService) SweepExpired(now time.Time) (int64, error) {
	res := s.db.Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// StartSweeper runs SweepExpired on an hourly ticker until done is closed.
func (s *TokenService) StartSweeper(done chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				count, err := s.SweepExpired(time.Now())
				if err != nil {
					slog.Error("refresh token sweep failed", "error", err)
				} else if count > 0 {
					slog.Info("refresh token sweep completed", "deleted", count)
				}
			case <-done:
				return
			}
		}
	}()
}

func (s *TokenService) issue(db *gorm.DB, user *models.User, family, deviceInfo string) (*dto.TokenResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(db, user, family, deviceInfo)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.JWTAccessExpiry.Seconds()),
	}, nil
}

func (s *TokenService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *TokenService) generateRefreshToken(db *gorm.DB, user *models.User, family, deviceInfo string) (string, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTRefreshExpiry)
	claims := jwt.MapClaims{
		"sub":    user.ID.String(),
		"family": family,
		"jti":    uuid.NewString(),
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", err
	}

	record := models.RefreshToken{
		ID:          uuid.New(),
		UserID:      user.ID,
		TokenHash:   hashToken(signed),
		TokenFamily: family,
		ExpiresAt:   expiresAt,
		DeviceInfo:  deviceInfo,
	}

	if err := db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return signed, nil
}

func (s *TokenService) parseRefreshToken(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
