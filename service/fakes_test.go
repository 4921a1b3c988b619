package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Go-routine-4595/equipment-dash/model"
)

var errBackendDown = errors.New("backend down")

// fakeBackend serves an in-memory inventory and counts calls. Upload appends
// the rows it is told to and a history entry, like the real ingestion endpoint.
type fakeBackend struct {
	mu sync.Mutex

	equipment []model.EquipmentRecord
	summary   *model.SummaryPayload
	history   []model.UploadHistoryEntry

	failEquipment bool
	failSummary   bool
	failHistory   bool
	failUpload    bool

	equipmentCalls int
	uploadCalls    int
	onUpload       []model.EquipmentRecord
}

func (f *fakeBackend) Equipment(_ context.Context) ([]model.EquipmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.equipmentCalls++
	if f.failEquipment {
		return nil, errBackendDown
	}
	return append([]model.EquipmentRecord(nil), f.equipment...), nil
}

func (f *fakeBackend) Summary(_ context.Context) (*model.SummaryPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary {
		return nil, errBackendDown
	}
	if f.summary != nil {
		s := *f.summary
		return &s, nil
	}
	return summaryOf(f.equipment), nil
}

func (f *fakeBackend) History(_ context.Context) ([]model.UploadHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHistory {
		return nil, errBackendDown
	}
	return append([]model.UploadHistoryEntry(nil), f.history...), nil
}

func (f *fakeBackend) Upload(_ context.Context, file model.StagedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	if f.failUpload {
		return errBackendDown
	}
	f.equipment = append([]model.EquipmentRecord(nil), f.onUpload...)
	entry := model.UploadHistoryEntry{
		ID:           int64(len(f.history) + 1),
		FileName:     file.Name,
		TotalRecords: len(f.onUpload),
		UploadedAt:   time.Date(2026, 1, 2, 10, 0, len(f.history), 0, time.UTC),
	}
	f.history = append([]model.UploadHistoryEntry{entry}, f.history...)
	return nil
}

func (f *fakeBackend) calls() (equipment, upload int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equipmentCalls, f.uploadCalls
}

func summaryOf(list []model.EquipmentRecord) *model.SummaryPayload {
	s := &model.SummaryPayload{Total: len(list)}
	index := map[string]int{}
	for _, r := range list {
		i, ok := index[r.Type]
		if !ok {
			i = len(s.TypeDistribution)
			index[r.Type] = i
			s.TypeDistribution = append(s.TypeDistribution, model.TypeCount{Type: r.Type})
		}
		s.TypeDistribution[i].Count++
	}
	return s
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SyncEvent
	err    error
}

func (p *recordingPublisher) PublishSync(event model.SyncEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type countingResyncer struct {
	mu    sync.Mutex
	calls []string
}

func (r *countingResyncer) Refresh(_ context.Context, trigger string) (model.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, trigger)
	return model.View{}, nil
}

// blockingUploader holds every upload until release is closed.
type blockingUploader struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingUploader) Upload(ctx context.Context, _ model.StagedFile) error {
	close(b.entered)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func pumpsAndValves() []model.EquipmentRecord {
	return []model.EquipmentRecord{
		{Name: "P-1", Type: "Pump", Flowrate: "10", Pressure: "2", Temperature: "50"},
		{Name: "P-2", Type: "Pump", Flowrate: "20", Pressure: "4", Temperature: "70"},
		{Name: "V-1", Type: "Valve", Flowrate: "5", Pressure: "1", Temperature: "30"},
	}
}

func records(n int, typ string) []model.EquipmentRecord {
	out := make([]model.EquipmentRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.EquipmentRecord{
			Name:     fmt.Sprintf("%s-%d", typ, i),
			Type:     typ,
			Flowrate: model.Measure(fmt.Sprintf("%d", i)),
		})
	}
	return out
}
