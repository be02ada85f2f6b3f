package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ranger/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := NewJsonlStorage(path)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.PutEvents([]model.Event{
		NewEvent(model.EventExcessRefunded, model.ExcessRefundedData{Token: "0xaa", To: "0xbb", Amount: "5"}, at),
	}))
	require.NoError(t, sink.PutEvents([]model.Event{
		NewEvent(model.EventPositionCreated, model.PositionCreatedData{PositionID: "1", TickLower: -520, TickUpper: 480}, at),
	}))
	require.NoError(t, sink.PutEvents(nil))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var kinds []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		kinds = append(kinds, decoded["kind"].(string))

		_, err := uuid.Parse(decoded["id"].(string))
		assert.NoError(t, err)
		assert.Equal(t, "2024-01-01T00:00:00Z", decoded["timestamp"])
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{model.EventExcessRefunded, model.EventPositionCreated}, kinds)
}

func TestMemorySinkCopies(t *testing.T) {
	sink := &MemorySink{}
	require.NoError(t, sink.PutEvents([]model.Event{{Kind: model.EventPositionCreated}}))

	events := sink.Events()
	events[0].Kind = "mutated"
	assert.Equal(t, model.EventPositionCreated, sink.Events()[0].Kind)
}
