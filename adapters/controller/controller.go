package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/model"
	"github.com/Go-routine-4595/equipment-dash/service"
)

type ControllerConfig struct {
	// Frequency is the number of seconds between two fetch cycles.
	Frequency int `yaml:"Frequency"`
	// MaxRefresh stops the loop after that many cycles, 0 runs until cancelled.
	MaxRefresh int `yaml:"MaxRefresh"`
}

type Refresher interface {
	Refresh(ctx context.Context, trigger string) (model.View, error)
}

type Renderer interface {
	Render(v model.View)
}

// Controller periodically resynchronizes the dashboard and renders the result.
type Controller struct {
	frequency  time.Duration
	maxRefresh int
	dashboard  Refresher
	renderer   Renderer
	logger     zerolog.Logger
}

func NewController(conf ControllerConfig, d Refresher, r Renderer, logger zerolog.Logger) Controller {
	frequency := time.Duration(conf.Frequency) * time.Second
	if frequency <= 0 {
		frequency = 30 * time.Second
	}
	return Controller{
		frequency:  frequency,
		maxRefresh: conf.MaxRefresh,
		dashboard:  d,
		renderer:   r,
		logger:     logger,
	}
}

// Start runs the refresh loop in the background; wg is released when it ends.
func (c Controller) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx)
	}()
}

// Run refreshes immediately and then every frequency until ctx is done or
// maxRefresh cycles ran. It returns the number of cycles started.
func (c Controller) Run(ctx context.Context) int {
	var (
		ticker *time.Ticker
		cycles int
	)

	ticker = time.NewTicker(c.frequency)
	defer ticker.Stop()

	trigger := service.TriggerManual
	for {
		c.refresh(ctx, trigger)
		cycles++
		trigger = service.TriggerPoll

		if c.maxRefresh > 0 && cycles >= c.maxRefresh {
			c.logger.Info().Int("cycles", cycles).Msg("Controller: refresh limit reached")
			return cycles
		}

		select {
		case <-ctx.Done():
			c.logger.Info().Int("cycles", cycles).Msg("Controller: context received signal, shutting down...")
			return cycles
		case <-ticker.C:
		}
	}
}

func (c Controller) refresh(ctx context.Context, trigger string) {
	v, err := c.dashboard.Refresh(ctx, trigger)
	if errors.Is(err, service.ErrCycleDiscarded) {
		return
	}
	if c.renderer != nil {
		c.renderer.Render(v)
	}
}
