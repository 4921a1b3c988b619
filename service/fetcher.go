package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Go-routine-4595/equipment-dash/model"
)

// Fetcher runs one fetch cycle: equipment, summary and history are requested
// concurrently and combined into a single snapshot.
type Fetcher struct {
	backend model.IBackend
	logger  zerolog.Logger
}

func NewFetcher(b model.IBackend, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		backend: b,
		logger:  logger,
	}
}

// Fetch returns a snapshot only when all three requests succeed. Any failure
// fails the whole cycle.
func (f *Fetcher) Fetch(ctx context.Context) (model.Snapshot, error) {
	var (
		equipment []model.EquipmentRecord
		summary   *model.SummaryPayload
		history   []model.UploadHistoryEntry
		g         *errgroup.Group
		gctx      context.Context
		start     time.Time
		err       error
	)

	start = time.Now()
	g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		equipment, err = f.backend.Equipment(gctx)
		if err != nil {
			return errors.Join(err, errors.New("fetch equipment"))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		summary, err = f.backend.Summary(gctx)
		if err != nil {
			return errors.Join(err, errors.New("fetch summary"))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = f.backend.History(gctx)
		if err != nil {
			return errors.Join(err, errors.New("fetch history"))
		}
		return nil
	})

	err = g.Wait()
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		CycleID:   uuid.NewString(),
		FetchedAt: time.Now(),
		Equipment: equipment,
		Summary:   summary,
		History:   history,
	}, nil
}
