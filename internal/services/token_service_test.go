package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tododeck/tododeck-backend/internal/config"
	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

// ---- helpers ----

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Todo{},
	))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  30 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: string(hash),
		IsActive:       true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func tokenRecords(t *testing.T, db *gorm.DB, userID uuid.UUID) []models.RefreshToken {
	t.Helper()
	var records []models.RefreshToken
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at").Find(&records).Error)
	return records
}

// ---- tests ----

func TestIssueTokenPair(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "issue@example.com")

	pair, err := svc.IssueTokenPair(user, "test-agent")
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, 30*60, pair.ExpiresIn)

	records := tokenRecords(t, db, user.ID)
	require.Len(t, records, 1)
	assert.False(t, records[0].Revoked)
	assert.NotEmpty(t, records[0].TokenFamily)
	assert.Equal(t, "test-agent", records[0].DeviceInfo)
	// Only the hash is persisted
	assert.NotEqual(t, pair.RefreshToken, records[0].TokenHash)
}

func TestRotateSucceedsOnceInSameFamily(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "rotate@example.com")

	p1, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	p2, err := svc.Rotate(p1.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)

	records := tokenRecords(t, db, user.ID)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].TokenFamily, records[1].TokenFamily, "rotation keeps the family")
	assert.True(t, records[0].Revoked, "the presented token is dead after rotation")
	assert.False(t, records[1].Revoked)
}

func TestRotateReplayKillsFamily(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "replay@example.com")

	p1, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)
	p2, err := svc.Rotate(p1.RefreshToken, "")
	require.NoError(t, err)

	// Replaying the consumed token is rejected...
	_, err = svc.Rotate(p1.RefreshToken, "")
	require.ErrorIs(t, err, ErrTokenReplayed)

	// ...and takes the whole lineage with it.
	_, err = svc.Rotate(p2.RefreshToken, "")
	require.ErrorIs(t, err, ErrTokenReplayed)

	for _, rec := range tokenRecords(t, db, user.ID) {
		assert.True(t, rec.Revoked)
	}
}

func TestRotateReplayDoesNotTouchOtherFamilies(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "families@example.com")

	device1, err := svc.IssueTokenPair(user, "phone")
	require.NoError(t, err)
	device2, err := svc.IssueTokenPair(user, "laptop")
	require.NoError(t, err)

	rotated, err := svc.Rotate(device1.RefreshToken, "phone")
	require.NoError(t, err)
	_, err = svc.Rotate(device1.RefreshToken, "phone")
	require.ErrorIs(t, err, ErrTokenReplayed)

	// The other device's lineage still works.
	_, err = svc.Rotate(device2.RefreshToken, "laptop")
	require.NoError(t, err)

	// The compromised family stays dead.
	_, err = svc.Rotate(rotated.RefreshToken, "phone")
	require.ErrorIs(t, err, ErrTokenReplayed)
}

func TestRotateRejectsGarbageToken(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())

	_, err := svc.Rotate("not-a-jwt", "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsTokenSignedWithWrongKey(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "wrongkey@example.com")

	otherCfg := testConfig()
	otherCfg.JWTSecret = "some-other-secret"
	forged, err := NewTokenService(db, otherCfg).IssueTokenPair(user, "")
	require.NoError(t, err)

	svc := NewTokenService(db, testConfig())
	_, err = svc.Rotate(forged.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsExpiredClaim(t *testing.T) {
	db := setupDB(t)
	cfg := testConfig()
	cfg.JWTRefreshExpiry = -time.Hour
	svc := NewTokenService(db, cfg)
	user := createUser(t, db, "expiredclaim@example.com")

	pair, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	// Never used, but its embedded expiry has passed.
	_, err = svc.Rotate(pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsExpiredRecord(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "expiredrecord@example.com")

	pair, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	// Expire the persisted record while the JWT claim is still valid.
	require.NoError(t, db.Model(&models.RefreshToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = svc.Rotate(pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsInactiveUser(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "inactive@example.com")

	pair, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_active", false).Error)

	_, err = svc.Rotate(pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeMakesTokenReplayable(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "revoke@example.com")

	pair, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(pair.RefreshToken, user.ID))

	// A logged-out token presented again looks like a replay.
	_, err = svc.Rotate(pair.RefreshToken, "")
	require.ErrorIs(t, err, ErrTokenReplayed)
}

func TestRevokeIgnoresForeignToken(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	owner := createUser(t, db, "owner@example.com")
	other := createUser(t, db, "other@example.com")

	pair, err := svc.IssueTokenPair(owner, "")
	require.NoError(t, err)

	// Revoking with the wrong owner must not touch the record.
	require.NoError(t, svc.Revoke(pair.RefreshToken, other.ID))

	_, err = svc.Rotate(pair.RefreshToken, "")
	require.NoError(t, err)
}

func TestRevokeAllForUser(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "revokeall@example.com")

	var pairs []*dto.TokenResponse
	for i := 0; i < 3; i++ {
		pair, err := svc.IssueTokenPair(user, "")
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	require.NoError(t, svc.RevokeAllForUser(user.ID))

	for _, pair := range pairs {
		_, err := svc.Rotate(pair.RefreshToken, "")
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestSweepExpired(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "sweep@example.com")

	for i := 0; i < 3; i++ {
		_, err := svc.IssueTokenPair(user, "")
		require.NoError(t, err)
	}
	live, err := svc.IssueTokenPair(user, "")
	require.NoError(t, err)

	// Age everything except the live token past expiry.
	require.NoError(t, db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash <> ?", user.ID, hashToken(live.RefreshToken)).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	count, err := svc.SweepExpired(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// Idempotent: a second sweep finds nothing.
	count, err = svc.SweepExpired(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, err = svc.Rotate(live.RefreshToken, "")
	require.NoError(t, err)
}

func TestRotateSurfacesStorageFailure(t *testing.T) {
	db := setupDB(t)
	svc := NewTokenService(db, testConfig())
	user := createUser(t, db, "outage@example.com")

	pair, err := svc.IssueTokenPair(user, "test-agent")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// A dead store must not read as a rejected token: the caller maps
	// ErrInvalidToken to 401, and this has to stay a server-side failure.
	_, err = svc.Rotate(pair.RefreshToken, "test-agent")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrTokenReplayed)
}
