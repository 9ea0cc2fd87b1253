package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelay_Handle(t *testing.T) {
	r := newRelay(DefaultSubject, testLogger())
	other := newRelay(DefaultSubject, testLogger())
	require.NotEqual(t, r.Origin(), other.Origin())

	encode := func(env Envelope) []byte {
		b, err := json.Marshal(env)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name      string
		data      []byte
		delivered bool
	}{
		{
			name:      "remote envelope is delivered",
			data:      encode(Envelope{Origin: other.Origin(), Room: "general", Sender: "alice", Text: "hi: all"}),
			delivered: true,
		},
		{
			name: "own echo is ignored",
			data: encode(Envelope{Origin: r.Origin(), Room: "general", Sender: "alice", Text: "hi"}),
		},
		{
			name: "missing room is ignored",
			data: encode(Envelope{Origin: other.Origin(), Sender: "alice", Text: "hi"}),
		},
		{
			name: "malformed json is ignored",
			data: []byte("{not json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			ok := r.handle(tt.data, func(room, sender, text string) {
				got = append(got, room, sender, text)
			})
			assert.Equal(t, tt.delivered, ok)
			if tt.delivered {
				assert.Equal(t, []string{"general", "alice", "hi: all"}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestRelay_CloseWithoutConnection(t *testing.T) {
	r := newRelay("", testLogger())
	assert.NotPanics(t, r.Close)
}
