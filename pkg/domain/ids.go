// Package domain holds typed identifiers shared across bounded contexts.
// Typed IDs keep user and prediction identifiers from being swapped at
// compile time; parsing happens once at the trust boundary.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "churnboard/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	PredictionID uuid.UUID
)

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id PredictionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PredictionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id PredictionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PredictionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewPredictionID returns a fresh random prediction id.
func NewPredictionID() PredictionID { return PredictionID(uuid.New()) }

// ParseUserID parses s and rejects empty, malformed and nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParsePredictionID parses s and rejects empty, malformed and nil UUIDs.
func ParsePredictionID(s string) (PredictionID, error) {
	u, err := parseUUID(s, "prediction ID")
	return PredictionID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s required", label))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s", label))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be nil", label))
	}
	return u, nil
}
