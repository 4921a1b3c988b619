package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Go-routine-4595/equipment-dash/model"
)

func TestFetcher_Fetch(t *testing.T) {
	backend := &fakeBackend{
		equipment: pumpsAndValves(),
		history: []model.UploadHistoryEntry{
			{ID: 2, FileName: "b.csv", TotalRecords: 3},
			{ID: 1, FileName: "a.csv", TotalRecords: 5},
		},
	}

	snap, err := NewFetcher(backend, zerolog.Nop()).Fetch(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, snap.CycleID)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Equal(t, pumpsAndValves(), snap.Equipment)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, []model.TypeCount{{Type: "Pump", Count: 2}, {Type: "Valve", Count: 1}}, snap.Summary.TypeDistribution)
	assert.Equal(t, backend.history, snap.History)
}

func TestFetcher_AnyFailureFailsTheCycle(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{name: "equipment", backend: &fakeBackend{failEquipment: true}},
		{name: "summary", backend: &fakeBackend{failSummary: true}},
		{name: "history", backend: &fakeBackend{failHistory: true}},
		{name: "all", backend: &fakeBackend{failEquipment: true, failSummary: true, failHistory: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.backend.equipment = pumpsAndValves()

			snap, err := NewFetcher(tt.backend, zerolog.Nop()).Fetch(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, errBackendDown)
			assert.Equal(t, model.Snapshot{}, snap)
		})
	}
}

// barrierBackend only answers once all three requests are in flight, so a
// sequential fetcher would time out.
type barrierBackend struct {
	wg sync.WaitGroup
}

func (b *barrierBackend) wait(ctx context.Context) error {
	b.wg.Done()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *barrierBackend) Equipment(ctx context.Context) ([]model.EquipmentRecord, error) {
	return pumpsAndValves(), b.wait(ctx)
}

func (b *barrierBackend) Summary(ctx context.Context) (*model.SummaryPayload, error) {
	return &model.SummaryPayload{}, b.wait(ctx)
}

func (b *barrierBackend) History(ctx context.Context) ([]model.UploadHistoryEntry, error) {
	return nil, b.wait(ctx)
}

func TestFetcher_RequestsRunConcurrently(t *testing.T) {
	backend := &barrierBackend{}
	backend.wg.Add(3)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := NewFetcher(backend, zerolog.Nop()).Fetch(ctx)

	require.NoError(t, err)
	assert.Len(t, snap.Equipment, 3)
}
