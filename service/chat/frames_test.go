package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"ChatLink/tools/errs"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"privateMessage","data":{"recipientId":"bob","content":"hi"}}`))
	require.NoError(t, err)
	require.Equal(t, EvPrivateMessage, f.Event)

	var in PrivateMessageIn
	require.NoError(t, json.Unmarshal(f.Data, &in))
	require.Equal(t, "bob", in.RecipientID)
	require.Equal(t, "hi", in.Content)
}

func TestParseFrame_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"missing event", `{"data":{}}`},
		{"empty object", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tc.raw))
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestMarshalFrame_RoundTrip(t *testing.T) {
	raw := MarshalFrame(EvError, ErrorOut{Code: 422, Message: "validation failed"})
	require.NotEmpty(t, raw)

	f, err := ParseFrame(raw)
	require.NoError(t, err)
	require.Equal(t, EvError, f.Event)

	var out ErrorOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, 422, out.Code)
}

func TestBuildError_HidesInternalDetail(t *testing.T) {
	raw := BuildError(errs.ErrPersistence.WithDetail("dial tcp 10.0.0.5: connection refused"))
	f, err := ParseFrame(raw)
	require.NoError(t, err)
	require.Equal(t, EvError, f.Event)

	var out ErrorOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, errs.CodePersistence, out.Code)
	require.NotContains(t, out.Message, "10.0.0.5")
}
