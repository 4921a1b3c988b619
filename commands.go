package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Go-routine-4595/equipment-dash/adapters/controller"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/backend"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/codec"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/credential"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/display"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/event-hub"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/mqtt"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/rabbitmq"
	"github.com/Go-routine-4595/equipment-dash/adapters/web"
	"github.com/Go-routine-4595/equipment-dash/model"
	"github.com/Go-routine-4595/equipment-dash/service"
)

// app is what every command needs: configuration, logger and an
// authenticated backend client.
type app struct {
	conf   Config
	logger zerolog.Logger
	store  credential.FileStore
	client *backend.Client
}

func newApp() (app, error) {
	var (
		a    app
		cred model.Credential
		err  error
	)

	a.conf = openConfigFile(configPath)
	a.logger = createLogger(a.conf.LogLevel)
	a.store = credential.NewFileStore(a.conf.CredentialConfig)

	cred, err = a.store.Load()
	if err != nil {
		return a, err
	}
	if cred.Empty() {
		a.logger.Warn().Str("file", a.store.Path()).Msg("no stored token, requests are sent unauthenticated")
	}
	a.client = backend.NewClient(a.conf.BackendConfig, cred, a.logger)
	return a, nil
}

// publishers builds the configured sync event sinks. Sinks that fail to
// connect are logged and skipped.
func (a app) publishers(ctx context.Context, wg *sync.WaitGroup) ([]model.IPublisher, error) {
	var (
		enc  codec.Encoder
		pubs []model.IPublisher
		err  error
	)

	enc, err = codec.NewEncoder(a.conf.PublisherConfig.Format)
	if err != nil {
		return nil, err
	}

	for _, target := range a.conf.PublisherConfig.Targets {
		switch strings.ToLower(target) {
		case "display":
			pubs = append(pubs, display.NewDisplayTo(os.Stderr))
		case "mqtt":
			m, err := mqtt.NewMqtt(ctx, wg, a.conf.MqttConf, enc, a.logger)
			if err != nil {
				a.logger.Error().Err(err).Msg("mqtt publisher disabled")
				continue
			}
			pubs = append(pubs, m)
		case "rabbitmq":
			r := rabbitmq.NewRabbitMQ(a.conf.RabbitMQConfig, enc, a.logger)
			if err := r.Start(ctx, wg); err != nil {
				a.logger.Error().Err(err).Msg("rabbitmq publisher disabled")
				continue
			}
			pubs = append(pubs, r)
		case "eventhub":
			eh, err := event_hub.NewEventHub(ctx, wg, a.conf.EventHubConfig, enc, a.logger)
			if err != nil {
				a.logger.Error().Err(err).Msg("event hub publisher disabled")
				continue
			}
			pubs = append(pubs, eh)
		default:
			return nil, fmt.Errorf("unknown publisher target %q", target)
		}
	}
	return pubs, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
		}
		signal.Stop(sig)
		cancel()
	}()
	return ctx, cancel
}

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain a token and store it for later commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			cred, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err = a.store.Save(cred); err != nil {
				return err
			}
			a.logger.Info().Str("user", username).Str("file", a.store.Path()).Msg("token stored")

			// the token is checked with one authenticated read
			summary, err := a.client.WithCredential(cred).Summary(cmd.Context())
			if err != nil {
				a.logger.Warn().Err(err).Msg("token stored but the summary could not be read with it")
				return nil
			}
			a.logger.Info().Int("equipment", summary.Total).Msg("token accepted by the backend")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "backend user")
	cmd.Flags().StringVarP(&password, "password", "p", "", "backend password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.store.Clear()
		},
	}
}

func newSyncCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one fetch cycle and print the dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			dash := service.NewDashboard(service.NewFetcher(a.client, a.logger), a.logger)
			v, err := dash.Refresh(cmd.Context(), service.TriggerManual)
			if err == nil && filter != model.FilterAll {
				v, err = dash.SetFilter(filter)
			}
			display.NewDisplay().Render(v)
			return err
		},
	}
	cmd.Flags().StringVarP(&filter, "type", "t", model.FilterAll, "equipment type filter")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Resynchronize periodically and publish every applied snapshot",
		RunE: func(_ *cobra.Command, _ []string) error {
			var wg sync.WaitGroup

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			pubs, err := a.publishers(ctx, &wg)
			if err != nil {
				return err
			}
			dash := service.NewDashboard(service.NewFetcher(a.client, a.logger), a.logger, pubs...)
			ctrl := controller.NewController(a.conf.ControllerConfig, dash, display.NewDisplay(), a.logger)

			// the loop ending on its own (MaxRefresh) releases the publishers too
			ctrl.Run(ctx)
			cancel()
			wg.Wait()
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV file and resynchronize the dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Join(err, errors.New("read "+args[0]))
			}

			out := display.NewDisplay()
			dash := service.NewDashboard(service.NewFetcher(a.client, a.logger), a.logger)
			uploads := service.NewUploadCoordinator(a.client, dash, a.logger)

			if err = uploads.Stage(model.StagedFile{Name: filepath.Base(args[0]), Data: data}); err != nil {
				return err
			}
			err = uploads.Submit(cmd.Context())
			st := uploads.Status()
			out.RenderUpload(st.State, st.Message)
			if err != nil {
				return err
			}
			out.Render(dash.View())
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [out.pdf]",
		Short: "Download the PDF report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			path := "equipment_report.pdf"
			if len(args) == 1 {
				path = args[0]
			}

			f, err := os.Create(path)
			if err != nil {
				return errors.Join(err, errors.New("create "+path))
			}
			n, err := a.client.Report(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(path)
				return err
			}
			a.logger.Info().Str("file", path).Int64("bytes", n).Msg("report saved")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var poll bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			var wg sync.WaitGroup

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			pubs, err := a.publishers(ctx, &wg)
			if err != nil {
				return err
			}
			dash := service.NewDashboard(service.NewFetcher(a.client, a.logger), a.logger, pubs...)
			uploads := service.NewUploadCoordinator(a.client, dash, a.logger)

			if poll {
				controller.NewController(a.conf.ControllerConfig, dash, nil, a.logger).Start(ctx, &wg)
			} else {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = dash.Refresh(ctx, service.TriggerManual)
				}()
			}
			web.NewServer(a.conf.WebConfig, dash, uploads, a.logger).Start(ctx, &wg)

			wg.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&poll, "poll", false, "resynchronize every ControllerConfig.Frequency seconds")
	return cmd
}
