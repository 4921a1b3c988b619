package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"sync"
	"time"

	pmqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"

	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/codec"
	"github.com/Go-routine-4595/equipment-dash/model"
)

const (
	publishTimeout = 200 * time.Millisecond
	quiesceMillis  = 250

	statusOnline  = "online"
	statusOffline = "offline"
)

// MqttConf holds the configuration for the MQTT client.
type MqttConf struct {
	Connection string `yaml:"Connection"`
	// Topic receives the sync events, Topic+"/status" the retained presence.
	Topic       string `yaml:"Topic"`
	QoS         byte   `yaml:"QoS"`
	InsecureTLS bool   `yaml:"InsecureTLS"`
}

// Mqtt publishes dashboard sync events to a broker topic.
type Mqtt struct {
	Topic    string
	qos      byte
	ClientID uuid.UUID
	logger   zerolog.Logger
	encoder  codec.Encoder
	client   pmqtt.Client
}

type presence struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
	Tm       string `json:"tm"`
}

func NewMqtt(ctx context.Context, wg *sync.WaitGroup, conf MqttConf, enc codec.Encoder, l zerolog.Logger) (*Mqtt, error) {
	var (
		m   *Mqtt
		err error
	)

	m = &Mqtt{
		Topic:    conf.Topic,
		qos:      conf.QoS,
		ClientID: uuid.NewV4(),
		logger:   l.With().Str("gateway", "mqtt").Logger(),
		encoder:  enc,
	}
	if m.qos > 2 {
		m.qos = 1
	}

	m.client = pmqtt.NewClient(m.clientOptions(conf))
	if err = m.connect(); err != nil {
		return nil, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		m.Disconnect()
	}()

	m.announce(statusOnline)
	return m, nil
}

func (m *Mqtt) clientOptions(conf MqttConf) *pmqtt.ClientOptions {
	will, _ := json.Marshal(presence{ClientID: m.ClientID.String(), Status: statusOffline})

	return pmqtt.NewClientOptions().
		AddBroker(conf.Connection).
		SetClientID("equipment-dash-" + m.ClientID.String()).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: conf.InsecureTLS}).
		SetBinaryWill(m.statusTopic(), will, 1, true).
		SetConnectionLostHandler(ConnectLostHandler(m.logger)).
		SetOnConnectHandler(ConnectHandler(m.logger))
}

func (m *Mqtt) statusTopic() string {
	return m.Topic + "/status"
}

func (m *Mqtt) connect() error {
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		m.logger.Error().Err(token.Error()).Msg("Error connecting to mqtt broker")
		return errors.Join(token.Error(), errors.New("connect to mqtt broker"))
	}
	return nil
}

// announce publishes the retained presence of this client.
func (m *Mqtt) announce(status string) {
	b, err := json.Marshal(presence{
		ClientID: m.ClientID.String(),
		Status:   status,
		Tm:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("marshal presence")
		return
	}
	token := m.client.Publish(m.statusTopic(), 1, true, b)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		m.logger.Warn().Err(token.Error()).Str("status", status).Msg("presence not published")
		return
	}
	m.logger.Info().Str("topic", m.statusTopic()).Str("status", status).Msg("presence published")
}

// PublishSync sends the sync event on the configured topic. A publish that
// does not complete in time is logged, not returned.
func (m *Mqtt) PublishSync(event model.SyncEvent) error {
	var (
		b     []byte
		token pmqtt.Token
		err   error
	)

	b, err = m.encoder.Encode(event)
	if err != nil {
		return errors.Join(err, errors.New("encode sync event for mqtt"))
	}

	token = m.client.Publish(m.Topic, m.qos, false, b)
	if !token.WaitTimeout(publishTimeout) {
		m.logger.Warn().Str("cycle", event.CycleID).Msg("sync event publish still pending")
		return nil
	}
	if token.Error() != nil {
		return errors.Join(token.Error(), errors.New("publish sync event on "+m.Topic))
	}
	return nil
}

// Disconnect marks the client offline and closes the broker connection.
func (m *Mqtt) Disconnect() {
	m.announce(statusOffline)
	m.client.Disconnect(quiesceMillis)
	m.logger.Info().Msg("Disconnected from mqtt broker")
}

// ConnectHandler logs successful connections to the MQTT broker.
func ConnectHandler(logger zerolog.Logger) func(client pmqtt.Client) {
	return func(_ pmqtt.Client) {
		logger.Info().Msg("Connected to mqtt broker")
	}
}

// ConnectLostHandler logs lost connections along with the error encountered.
func ConnectLostHandler(logger zerolog.Logger) func(client pmqtt.Client, err error) {
	return func(_ pmqtt.Client, err error) {
		logger.Warn().Err(err).Msg("Connection Lost")
	}
}
