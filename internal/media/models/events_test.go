package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
)

func TestVideoStatusChanged_JSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := NewVideoStatusChanged("abc", domain.Processing, domain.Failed, "ffmpeg exited", at)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ev.EventID().String(), got["event_id"])
	assert.Equal(t, "abc", got["name"])
	assert.Equal(t, "Processing", got["from"])
	assert.Equal(t, "Failed", got["to"])
	assert.Equal(t, "ffmpeg exited", got["message"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["occurred_at"])
}

func TestVideoStatusChanged_CreationOmitsFrom(t *testing.T) {
	ev := NewVideoStatusChanged("abc", "", domain.Pending, "", time.Now())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"from"`)
	assert.Equal(t, "VideoStatusChanged", ev.EventType())
	assert.Equal(t, "abc", ev.AggregateID())
}
