//go:build integration

package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"churnboard/internal/account"
	"churnboard/internal/account/store/user"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.PostgresUserStore
}

func TestPostgresUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func (s *PostgresUserStoreSuite) newUser(email string) *account.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &account.User{
		ID:                   id.NewUserID(),
		Email:                email,
		Name:                 "Jane Doe",
		Company:              "Acme",
		PasswordHash:         "hash",
		DefaultModel:         "logistic",
		DefaultThresholdType: "f1",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (s *PostgresUserStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	u := s.newUser("jane@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	byID, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u, byID)

	byEmail, err := s.store.FindByEmail(ctx, u.Email)
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
}

func (s *PostgresUserStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newUser("dup@example.com")))

	err := s.store.Create(ctx, s.newUser("dup@example.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresUserStoreSuite) TestUpdate() {
	ctx := context.Background()
	u := s.newUser("update@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	login := time.Now().UTC().Truncate(time.Microsecond)
	u.DefaultModel = "randomForest"
	u.DefaultThresholdType = "cost"
	u.LastLoginAt = &login
	u.LastLoginDevice = "Chrome on Windows 10"
	s.Require().NoError(s.store.Update(ctx, u))

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("randomForest", found.DefaultModel)
	s.Equal("cost", found.DefaultThresholdType)
	s.Require().NotNil(found.LastLoginAt)
	s.True(login.Equal(*found.LastLoginAt))
	s.Equal("Chrome on Windows 10", found.LastLoginDevice)
}

func (s *PostgresUserStoreSuite) TestMissingUser() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.NewUserID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(ctx, s.newUser("ghost@example.com"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
