package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Go-routine-4595/equipment-dash/model"
)

func sampleEvent() model.SyncEvent {
	return model.SyncEvent{
		CycleID:     "c-1",
		Trigger:     "upload",
		Timestamp:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Total:       3,
		AvgFlowrate: 11.5,
		Labels:      []string{"Pump", "Valve"},
		Counts:      []int{2, 1},
	}
}

func TestNewEncoder(t *testing.T) {
	for _, f := range []string{"", FormatJSON} {
		e, err := NewEncoder(f)
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, e.Format())
		assert.Equal(t, "application/json", e.ContentType())
	}

	e, err := NewEncoder(FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, "application/msgpack", e.ContentType())

	_, err = NewEncoder("xml")
	assert.Error(t, err)
}

func TestEncoder_JSONFieldNames(t *testing.T) {
	e, err := NewEncoder(FormatJSON)
	require.NoError(t, err)

	b, err := e.Encode(sampleEvent())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "c-1", m["cycle_id"])
	assert.Equal(t, "upload", m["trigger"])
	assert.NotContains(t, m, "latest_upload")
}

func TestEncoder_MsgpackFieldNames(t *testing.T) {
	e, err := NewEncoder(FormatMsgpack)
	require.NoError(t, err)

	b, err := e.Encode(sampleEvent())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(b, &m))
	assert.Equal(t, "c-1", m["cycle_id"])
	assert.Contains(t, m, "counts")
}
