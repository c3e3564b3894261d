package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "churnboard/pkg/domain-errors"
)

func TestParseIDs(t *testing.T) {
	parsers := map[string]func(string) (string, error){
		"user": func(s string) (string, error) {
			v, err := ParseUserID(s)
			return v.String(), err
		},
		"prediction": func(s string) (string, error) {
			v, err := ParsePredictionID(s)
			return v.String(), err
		},
	}
	rejected := []string{"", "not-a-uuid", uuid.Nil.String(), "'; DROP TABLE predictions;--"}

	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			for _, in := range rejected {
				_, err := parse(in)
				require.Error(t, err, "input %q", in)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			}

			valid := uuid.NewString()
			got, err := parse(valid)
			require.NoError(t, err)
			assert.Equal(t, valid, got)
		})
	}
}

func TestIDsAsJSON(t *testing.T) {
	type record struct {
		Owner UserID       `json:"ownerId"`
		ID    PredictionID `json:"id"`
	}
	in := record{Owner: NewUserID(), ID: NewPredictionID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ownerId":"`+in.Owner.String()+`","id":"`+in.ID.String()+`"}`, string(raw))

	var out record
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
	assert.False(t, out.Owner.IsNil())
	assert.True(t, UserID{}.IsNil())
}
