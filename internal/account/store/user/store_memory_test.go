package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"churnboard/internal/account"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func newUser(email string) *account.User {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &account.User{
		ID:                   id.NewUserID(),
		Email:                email,
		Name:                 "Jane Doe",
		PasswordHash:         "hash",
		DefaultModel:         "logistic",
		DefaultThresholdType: "f1",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	ctx := context.Background()

	s.Run("returns user by ID and email", func() {
		u := newUser("jane.doe@example.com")
		s.Require().NoError(s.store.Create(ctx, u))

		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u, found)

		found, err = s.store.FindByEmail(ctx, u.Email)
		s.Require().NoError(err)
		s.Equal(u.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown users", func() {
		_, err := s.store.FindByID(ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByEmail(ctx, "missing@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryUserStoreSuite) TestCreateRejectsDuplicateEmail() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newUser("dup@example.com")))

	err := s.store.Create(ctx, newUser("dup@example.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryUserStoreSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("persists mutable fields and keeps the email", func() {
		u := newUser("update@example.com")
		s.Require().NoError(s.store.Create(ctx, u))

		login := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
		u.Company = "Acme"
		u.Email = "changed@example.com"
		u.LastLoginAt = &login
		u.LastLoginDevice = "Firefox on Linux"
		s.Require().NoError(s.store.Update(ctx, u))

		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal("Acme", found.Company)
		s.Equal("update@example.com", found.Email)
		s.Equal(login, *found.LastLoginAt)
		s.Equal("Firefox on Linux", found.LastLoginDevice)
	})

	s.Run("unknown user returns ErrNotFound", func() {
		err := s.store.Update(ctx, newUser("ghost@example.com"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryUserStoreSuite) TestReturnedUsersAreCopies() {
	ctx := context.Background()
	u := newUser("copy@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	found.Name = "Mutated"

	again, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Jane Doe", again.Name)
}
