package validation

import (
	"testing"

	"transport-connect/internal/general/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RequestID string   `json:"requestId" validate:"required"`
	Kind      string   `json:"type" validate:"omitempty,oneof=text image"`
	IDs       []string `json:"messageIds" validate:"max=2,dive,required"`
	Note      string   `json:"note" validate:"max=5"`
}

func TestStructMessages(t *testing.T) {
	cases := []struct {
		name string
		in   sample
		want string
	}{
		{"missing", sample{}, "requestId is required"},
		{"oneof", sample{RequestID: "r", Kind: "video"}, "type must be one of: text image"},
		{"too many", sample{RequestID: "r", IDs: []string{"a", "b", "c"}}, "messageIds must be at most 2"},
		{"too long", sample{RequestID: "r", Note: "abcdefg"}, "note must be at most 5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tc.want, apperr.Message(err))
		})
	}
}

func TestStructPasses(t *testing.T) {
	assert.NoError(t, Struct(sample{RequestID: "r", Kind: "text", IDs: []string{"a"}}))
}
