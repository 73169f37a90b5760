package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

func TestRegister(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	user, err := svc.Register(&dto.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret12",
		FullName: "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "New User", user.FullName)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret12", user.HashedPassword)

	var stored models.User
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&stored).Error)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	req := &dto.RegisterRequest{Email: "dup@example.com", Password: "secret12"}
	_, err := svc.Register(req)
	require.NoError(t, err)

	_, err = svc.Register(req)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	tests := []struct {
		name string
		req  dto.RegisterRequest
		want error
	}{
		{"bad email", dto.RegisterRequest{Email: "not-an-email", Password: "secret12"}, ErrInvalidEmail},
		{"short password", dto.RegisterRequest{Email: "a@example.com", Password: "ab1"}, ErrWeakPassword},
		{"no digit", dto.RegisterRequest{Email: "a@example.com", Password: "onlyletters"}, ErrWeakPassword},
		{"no letter", dto.RegisterRequest{Email: "a@example.com", Password: "1234567890"}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(&tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	_, err := svc.Register(&dto.RegisterRequest{Email: "login@example.com", Password: "secret12"})
	require.NoError(t, err)

	pair, err := svc.Login(&dto.LoginRequest{Email: "login@example.com", Password: "secret12"}, "agent")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginUniformFailure(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	_, err := svc.Register(&dto.RegisterRequest{Email: "exists@example.com", Password: "secret12"})
	require.NoError(t, err)

	// Unknown account and wrong password are indistinguishable.
	_, unknownErr := svc.Login(&dto.LoginRequest{Email: "nobody@example.com", Password: "secret12"}, "")
	_, wrongErr := svc.Login(&dto.LoginRequest{Email: "exists@example.com", Password: "wrong999"}, "")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	user, err := svc.Register(&dto.RegisterRequest{Email: "gone@example.com", Password: "secret12"})
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, err = svc.Login(&dto.LoginRequest{Email: "gone@example.com", Password: "secret12"}, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginThenRotateScenario(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	tokens := NewTokenService(db, cfg)
	svc := NewAuthService(db, cfg, tokens)

	_, err := svc.Register(&dto.RegisterRequest{Email: "scenario@example.com", Password: "secret12"})
	require.NoError(t, err)

	p1, err := svc.Login(&dto.LoginRequest{Email: "scenario@example.com", Password: "secret12"}, "")
	require.NoError(t, err)

	p2, err := tokens.Rotate(p1.RefreshToken, "")
	require.NoError(t, err)

	// P1 is dead, and replaying it kills P2 as well.
	_, err = tokens.Rotate(p1.RefreshToken, "")
	require.ErrorIs(t, err, ErrTokenReplayed)
	_, err = tokens.Rotate(p2.RefreshToken, "")
	require.ErrorIs(t, err, ErrTokenReplayed)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("abcdefg1"))
	assert.NoError(t, ValidatePassword("A1bcdefghij"))
	assert.Error(t, ValidatePassword("short1"))
	assert.Error(t, ValidatePassword("allletters"))
	assert.Error(t, ValidatePassword("12345678"))
}

func TestLoginSurfacesStorageFailure(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	svc := NewAuthService(db, cfg, NewTokenService(db, cfg))

	_, err := svc.Register(&dto.RegisterRequest{Email: "outage@example.com", Password: "secret12"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// A storage fault is not a failed credential check; the handler only
	// charges the limiter on ErrInvalidCredentials.
	_, err = svc.Login(&dto.LoginRequest{Email: "outage@example.com", Password: "secret12"}, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
