package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Go-routine-4595/equipment-dash/adapters/controller"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/backend"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/credential"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/event-hub"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/mqtt"
	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/rabbitmq"
	"github.com/Go-routine-4595/equipment-dash/adapters/web"
)

type PublisherConfig struct {
	// Targets lists the sync event sinks: display, mqtt, rabbitmq, eventhub.
	Targets []string `yaml:"Targets"`
	// Format is the payload encoding, json or msgpack.
	Format string `yaml:"Format"`
}

type Config struct {
	backend.BackendConfig       `yaml:"BackendConfig"`
	credential.CredentialConfig `yaml:"CredentialConfig"`
	controller.ControllerConfig `yaml:"ControllerConfig"`
	web.WebConfig               `yaml:"WebConfig"`
	PublisherConfig             `yaml:"PublisherConfig"`
	mqtt.MqttConf               `yaml:"MqttConfig"`
	rabbitmq.RabbitMQConfig     `yaml:"RabbitConfig"`
	event_hub.EventHubConfig    `yaml:"EventHubConfig"`
	LogLevel                    int `yaml:"LogLevel"`
}

var configPath string

func main() {
	var root *cobra.Command

	root = &cobra.Command{
		Use:           "equipment-dash",
		Short:         "Chemical equipment dashboard client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newSyncCmd(),
		newWatchCmd(),
		newUploadCmd(),
		newReportCmd(),
		newServeCmd(),
	)

	if err := root.Execute(); err != nil {
		processError(err)
	}
}

func openConfigFile(s string) Config {
	if s == "" {
		s = "config.yaml"
	}

	f, err := os.Open(s)
	if err != nil {
		processError(errors.Join(err, errors.New("open "+s+" file")))
	}
	defer f.Close()

	var config Config
	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&config)
	if err != nil {
		processError(errors.Join(err, errors.New("decode "+s)))
	}
	return config
}

// createLogger initializes a zerolog.Logger with standard settings.
func createLogger(logLevel int) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel+zerolog.Level(logLevel)).
		With().Timestamp().Int("pid", os.Getpid()).Logger()
}

func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}
