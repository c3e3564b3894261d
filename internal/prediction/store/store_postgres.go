package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"churnboard/internal/churn"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunInTx runs fn inside a database transaction carried by ctx.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

// NextCustomerID increments and returns the global customer counter. Inside
// a transaction the counter row stays locked until commit.
func (s *PostgresStore) NextCustomerID(ctx context.Context) (int64, error) {
	var next int64
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`, customerCounter).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("increment customer counter: %w", err)
	}
	return next, nil
}

const recordColumns = `id, owner_id, customer_id, customer_name, age, gender, region,
	tenure, monthly_charges, total_charges, contract, internet_service,
	online_security, tech_support, payment_method, streaming_tv, paperless_billing,
	churn_probability, risk_level, model, threshold_type, threshold, churn, recorded_at`

// Append inserts rec.
func (s *PostgresStore) Append(ctx context.Context, rec *churn.Record) error {
	var recordedAt sql.NullTime
	if rec.Timestamp != nil {
		recordedAt = sql.NullTime{Time: rec.Timestamp.UTC(), Valid: true}
	}
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `INSERT INTO predictions (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		uuid.UUID(rec.ID),
		uuid.UUID(rec.OwnerID),
		rec.CustomerID,
		rec.Customer.Name,
		float64(rec.Customer.Age),
		rec.Customer.Gender,
		rec.Customer.Region,
		rec.Features.Tenure,
		rec.Features.MonthlyCharges,
		rec.Features.TotalCharges,
		rec.Features.Contract,
		rec.Features.InternetService,
		rec.Features.OnlineSecurity,
		rec.Features.TechSupport,
		rec.Features.PaymentMethod,
		rec.Features.StreamingTV,
		rec.Features.PaperlessBilling,
		rec.Prediction.ChurnProbability,
		string(rec.Prediction.RiskLevel),
		rec.Prediction.Model,
		rec.Prediction.ThresholdType,
		rec.Prediction.Threshold,
		rec.Prediction.Churn,
		recordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// FindByID returns the record with the given id if owner owns it.
func (s *PostgresStore) FindByID(ctx context.Context, owner id.UserID, predictionID id.PredictionID) (*churn.Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM predictions WHERE id = $1 AND owner_id = $2`,
		uuid.UUID(predictionID), uuid.UUID(owner))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find prediction by id: %w", err)
	}
	return rec, nil
}

// ListByOwner returns owner's records ordered by customer id.
func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID, filter churn.Filter) ([]churn.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM predictions WHERE owner_id = $1`
	args := []any{uuid.UUID(owner)}
	if len(filter.Risk) > 0 {
		levels := make([]string, len(filter.Risk))
		for i, l := range filter.Risk {
			levels[i] = string(l)
		}
		query += ` AND risk_level = ANY($2::text[])`
		args = append(args, pq.Array(levels))
	}
	query += ` ORDER BY customer_id`

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	out := make([]churn.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*churn.Record, error) {
	var (
		rec        churn.Record
		recID      uuid.UUID
		ownerID    uuid.UUID
		age        float64
		risk       string
		recordedAt sql.NullTime
	)
	err := row.Scan(
		&recID,
		&ownerID,
		&rec.CustomerID,
		&rec.Customer.Name,
		&age,
		&rec.Customer.Gender,
		&rec.Customer.Region,
		&rec.Features.Tenure,
		&rec.Features.MonthlyCharges,
		&rec.Features.TotalCharges,
		&rec.Features.Contract,
		&rec.Features.InternetService,
		&rec.Features.OnlineSecurity,
		&rec.Features.TechSupport,
		&rec.Features.PaymentMethod,
		&rec.Features.StreamingTV,
		&rec.Features.PaperlessBilling,
		&rec.Prediction.ChurnProbability,
		&risk,
		&rec.Prediction.Model,
		&rec.Prediction.ThresholdType,
		&rec.Prediction.Threshold,
		&rec.Prediction.Churn,
		&recordedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.PredictionID(recID)
	rec.OwnerID = id.UserID(ownerID)
	rec.Customer.Age = churn.Age(age)
	rec.Prediction.RiskLevel = churn.RiskLevel(strings.TrimSpace(risk))
	if recordedAt.Valid {
		t := recordedAt.Time.UTC().Truncate(time.Microsecond)
		rec.Timestamp = &t
	}
	return &rec, nil
}
