package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_MarshalJSON(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{"42", `42`},
		{"-3", `-3`},
		{"0", `0`},
		{"007", `"007"`},
		{"+5", `"+5"`},
		{"-0", `"-0"`},
		{"99999999999999999999", `"99999999999999999999"`},
		{"3f2a-uuid", `"3f2a-uuid"`},
		{"", `""`},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			out, err := json.Marshal(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestID_MarshalInsidePayload(t *testing.T) {
	out, err := json.Marshal(NewMessage{MatchID: "007", Content: "hi"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"007"`)

	var back struct {
		MatchID ID `json:"matchId"`
	}
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, ID("007"), back.MatchID)
}
