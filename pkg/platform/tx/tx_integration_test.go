//go:build integration

package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"churnboard/pkg/platform/tx"
	"churnboard/pkg/testutil/containers"
)

type TxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(TxSuite))
}

func (s *TxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	_, err := s.postgres.DB.Exec(`CREATE TABLE IF NOT EXISTS tx_probe (n INT NOT NULL)`)
	s.Require().NoError(err)
}

func (s *TxSuite) TearDownSuite() {
	_, _ = s.postgres.DB.Exec(`DROP TABLE IF EXISTS tx_probe`)
}

func (s *TxSuite) SetupTest() {
	_, err := s.postgres.DB.Exec(`TRUNCATE tx_probe`)
	s.Require().NoError(err)
}

func (s *TxSuite) count() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRow(`SELECT count(*) FROM tx_probe`).Scan(&n))
	return n
}

func (s *TxSuite) insert(ctx context.Context, n int) error {
	_, err := tx.Conn(ctx, s.postgres.DB).ExecContext(ctx, `INSERT INTO tx_probe (n) VALUES ($1)`, n)
	return err
}

func (s *TxSuite) TestRun() {
	ctx := context.Background()

	s.Run("commits when fn succeeds", func() {
		err := tx.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
			return s.insert(ctx, 1)
		})
		s.Require().NoError(err)
		s.Equal(1, s.count())
	})

	s.Run("rolls back every write when fn fails", func() {
		boom := errors.New("boom")
		err := tx.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
			s.Require().NoError(s.insert(ctx, 2))
			s.Require().NoError(s.insert(ctx, 3))
			return boom
		})
		s.ErrorIs(err, boom)
		s.Equal(1, s.count())
	})

	s.Run("nested run joins the outer transaction", func() {
		boom := errors.New("outer failed")
		err := tx.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
			inner := tx.Run(ctx, s.postgres.DB, func(ctx context.Context) error {
				return s.insert(ctx, 4)
			})
			s.Require().NoError(inner)
			return boom
		})
		s.ErrorIs(err, boom)
		s.Equal(1, s.count())
	})
}
