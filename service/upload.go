package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/model"
)

// Upload coordinator states.
const (
	UploadIdle       = "idle"
	UploadStaged     = "staged"
	UploadSubmitting = "submitting"
	UploadSucceeded  = "succeeded"
	UploadFailed     = "failed"
)

const (
	eventStage   = "stage"
	eventSubmit  = "submit"
	eventSucceed = "succeed"
	eventFail    = "fail"

	noFileMessage          = "Please select a CSV file!"
	uploadSucceededMessage = "CSV uploaded successfully!"
	uploadFailedMessage    = "Upload failed!"
)

var (
	ErrNoFileStaged     = errors.New("no file staged for upload")
	ErrUploadInProgress = errors.New("upload already in progress")
)

// Resyncer re-runs a fetch cycle after a successful upload.
type Resyncer interface {
	Refresh(ctx context.Context, trigger string) (model.View, error)
}

// UploadStatus is what the shells show next to the upload control.
type UploadStatus struct {
	State     string `json:"state"`
	Message   string `json:"message"`
	FileName  string `json:"file_name,omitempty"`
	AttemptID string `json:"attempt_id,omitempty"`
}

// UploadCoordinator stages a file, submits it and resynchronizes the dashboard
// when the backend accepts it.
type UploadCoordinator struct {
	uploader model.IUploader
	resync   Resyncer
	logger   zerolog.Logger

	mu        sync.Mutex
	machine   *fsm.FSM
	staged    *model.StagedFile
	message   string
	attemptID string
}

func NewUploadCoordinator(u model.IUploader, r Resyncer, logger zerolog.Logger) *UploadCoordinator {
	c := &UploadCoordinator{
		uploader: u,
		resync:   r,
		logger:   logger,
	}

	c.machine = fsm.NewFSM(
		UploadIdle,
		fsm.Events{
			{Name: eventStage, Src: []string{UploadIdle, UploadSucceeded, UploadFailed}, Dst: UploadStaged},
			{Name: eventSubmit, Src: []string{UploadStaged, UploadSucceeded, UploadFailed}, Dst: UploadSubmitting},
			{Name: eventSucceed, Src: []string{UploadSubmitting}, Dst: UploadSucceeded},
			{Name: eventFail, Src: []string{UploadSubmitting}, Dst: UploadFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("upload state changed")
			},
		},
	)
	return c
}

// Stage selects the file for the next submission, replacing any staged file.
// The .csv extension is only a hint.
func (c *UploadCoordinator) Stage(file model.StagedFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.machine.Current() {
	case UploadSubmitting:
		return ErrUploadInProgress
	case UploadStaged:
	default:
		if err := c.machine.Event(context.Background(), eventStage); err != nil {
			return errors.Join(err, errors.New("stage upload file"))
		}
	}

	if !strings.EqualFold(filepath.Ext(file.Name), ".csv") {
		c.logger.Debug().Str("file", file.Name).Msg("staged file has no .csv extension")
	}
	c.staged = &file
	c.message = ""
	return nil
}

// Submit sends the staged file. On success the dashboard is resynchronized
// once; on failure the staged file is kept so the operator can retry.
func (c *UploadCoordinator) Submit(ctx context.Context) error {
	var (
		file    model.StagedFile
		attempt string
		err     error
	)

	c.mu.Lock()
	if c.staged == nil {
		c.message = noFileMessage
		c.mu.Unlock()
		uploadAttempts.WithLabelValues(outcomeRejected).Inc()
		return ErrNoFileStaged
	}
	if c.machine.Current() == UploadSubmitting {
		c.mu.Unlock()
		return ErrUploadInProgress
	}
	if err = c.machine.Event(context.Background(), eventSubmit); err != nil {
		c.mu.Unlock()
		return errors.Join(err, errors.New("submit upload"))
	}
	file = *c.staged
	attempt = uuid.NewString()
	c.attemptID = attempt
	c.message = ""
	c.mu.Unlock()

	c.logger.Info().Str("attempt", attempt).Str("file", file.Name).Int("bytes", len(file.Data)).Msg("submitting upload")
	err = c.uploader.Upload(ctx, file)

	c.mu.Lock()
	if err != nil {
		c.transition(eventFail)
		c.message = uploadFailedMessage
		c.mu.Unlock()
		uploadAttempts.WithLabelValues(outcomeFailed).Inc()
		c.logger.Error().Err(err).Str("attempt", attempt).Str("file", file.Name).Msg("upload failed")
		return errors.Join(err, errors.New("upload "+file.Name))
	}
	c.transition(eventSucceed)
	c.message = uploadSucceededMessage
	c.mu.Unlock()
	uploadAttempts.WithLabelValues(outcomeSucceeded).Inc()
	c.logger.Info().Str("attempt", attempt).Str("file", file.Name).Msg("upload accepted, resynchronizing")

	// a failed resync shows up as the dashboard error, the upload itself stands
	if _, err = c.resync.Refresh(ctx, TriggerUpload); err != nil {
		c.logger.Warn().Err(err).Str("attempt", attempt).Msg("resynchronization after upload failed")
	}
	return nil
}

func (c *UploadCoordinator) transition(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("invalid upload transition")
	}
}

// Status returns the current state and operator message.
func (c *UploadCoordinator) Status() UploadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := UploadStatus{
		State:     c.machine.Current(),
		Message:   c.message,
		AttemptID: c.attemptID,
	}
	if c.staged != nil {
		st.FileName = c.staged.Name
	}
	return st
}
