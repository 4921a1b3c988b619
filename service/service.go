package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/model"
)

const (
	TriggerManual = "manual"
	TriggerPoll   = "poll"
	TriggerUpload = "upload"

	fetchFailedMessage = "Failed to load data from backend"
)

var (
	// ErrCycleDiscarded is returned by Refresh when a newer fetch cycle settled
	// first and this cycle's result was dropped.
	ErrCycleDiscarded = errors.New("fetch cycle superseded by a newer cycle")
	// ErrUnknownFilter is returned by SetFilter for a type absent from the
	// loaded equipment.
	ErrUnknownFilter = errors.New("unknown equipment type")
)

// SnapshotFetcher produces one snapshot per call.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
}

// Dashboard owns the applied snapshot and the active filter. Every change goes
// through Refresh or SetFilter and the view is re-derived from scratch.
type Dashboard struct {
	fetcher    SnapshotFetcher
	publishers []model.IPublisher
	logger     zerolog.Logger

	mu       sync.Mutex
	snapshot model.Snapshot
	filter   string
	status   model.Status
	errMsg   string
	// issued is the sequence number of the last started cycle, settled the
	// highest sequence number whose outcome was applied.
	issued  uint64
	settled uint64
}

func NewDashboard(f SnapshotFetcher, logger zerolog.Logger, publishers ...model.IPublisher) *Dashboard {
	return &Dashboard{
		fetcher:    f,
		publishers: publishers,
		logger:     logger,
		filter:     model.FilterAll,
		status:     model.StatusLoading,
	}
}

// Refresh runs a full fetch cycle and applies its outcome unless a newer cycle
// has already settled.
func (d *Dashboard) Refresh(ctx context.Context, trigger string) (model.View, error) {
	var (
		seq  uint64
		snap model.Snapshot
		err  error
	)

	seq = d.begin()
	d.logger.Debug().Uint64("cycle", seq).Str("trigger", trigger).Msg("fetch cycle started")

	snap, err = d.fetcher.Fetch(ctx)
	return d.complete(seq, trigger, snap, err)
}

func (d *Dashboard) begin() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.issued++
	d.status = model.StatusLoading
	return d.issued
}

func (d *Dashboard) complete(seq uint64, trigger string, snap model.Snapshot, fetchErr error) (model.View, error) {
	var (
		view  model.View
		event model.SyncEvent
	)

	d.mu.Lock()
	if seq <= d.settled {
		settled := d.settled
		view = d.viewLocked()
		d.mu.Unlock()
		fetchCycles.WithLabelValues(outcomeDiscarded).Inc()
		d.logger.Info().Uint64("cycle", seq).Uint64("settled", settled).Msg("stale fetch cycle discarded")
		return view, ErrCycleDiscarded
	}
	d.settled = seq

	if fetchErr != nil {
		d.status = model.StatusError
		d.errMsg = fetchFailedMessage
		view = d.viewLocked()
		d.mu.Unlock()
		fetchCycles.WithLabelValues(outcomeFailed).Inc()
		d.logger.Error().Err(fetchErr).Uint64("cycle", seq).Str("trigger", trigger).Msg("fetch cycle failed")
		return view, fetchErr
	}

	d.snapshot = snap
	d.status = model.StatusReady
	d.errMsg = ""
	view = d.viewLocked()
	d.mu.Unlock()

	fetchCycles.WithLabelValues(outcomeApplied).Inc()
	equipmentRecords.Set(float64(len(snap.Equipment)))
	d.logger.Info().Uint64("cycle", seq).Str("id", snap.CycleID).Str("trigger", trigger).
		Int("equipment", len(snap.Equipment)).Int("history", len(snap.History)).Msg("snapshot applied")

	// publishers get the unfiltered figures
	event = syncEvent(Derive(snap, model.FilterAll), trigger, snap)
	d.publish(event)

	return view, nil
}

func (d *Dashboard) publish(event model.SyncEvent) {
	for _, p := range d.publishers {
		if err := p.PublishSync(event); err != nil {
			d.logger.Warn().Err(err).Str("id", event.CycleID).Msg("failed to publish sync event")
		}
	}
}

// SetFilter changes the active type filter to "All" or one of the loaded
// types. Any other value leaves the filter unchanged and returns
// ErrUnknownFilter. A filter set earlier stays active when a later snapshot no
// longer has that type.
func (d *Dashboard) SetFilter(filter string) (model.View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !slices.Contains(TypeOptions(d.snapshot.Equipment), filter) {
		return d.viewLocked(), errors.Join(ErrUnknownFilter, errors.New("filter "+filter))
	}
	d.filter = filter
	return d.viewLocked(), nil
}

// View returns the view derived from the current snapshot and filter.
func (d *Dashboard) View() model.View {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.viewLocked()
}

// Snapshot returns the applied snapshot.
func (d *Dashboard) Snapshot() model.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.snapshot
}

func (d *Dashboard) viewLocked() model.View {
	v := Derive(d.snapshot, d.filter)
	v.Status = d.status
	v.Error = d.errMsg
	return v
}
