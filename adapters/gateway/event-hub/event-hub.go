package event_hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"github.com/rs/zerolog"

	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/codec"
	"github.com/Go-routine-4595/equipment-dash/model"
)

const sendTimeout = 10 * time.Second

// connection string can have the event hub name like this
// Endpoint=sb://<namespace>.servicebus.windows.net/;SharedAccessKeyName=<KeyName>;SharedAccessKey=<KeyValue>;EntityPath=<hub>
// see https://learn.microsoft.com/en-us/azure/event-hubs/event-hubs-get-connection-string

type EventHubConfig struct {
	Connection   string `yaml:"connection"`
	EventHubName string `yaml:"EventHubName"`
}

type EventHub struct {
	producerClient *azeventhubs.ProducerClient
	encoder        codec.Encoder
	logger         zerolog.Logger
}

func NewEventHub(ctx context.Context, wg *sync.WaitGroup, conf EventHubConfig, enc codec.Encoder, logger zerolog.Logger) (*EventHub, error) {
	var (
		err            error
		producerClient *azeventhubs.ProducerClient
	)
	producerClient, err = azeventhubs.NewProducerClientFromConnectionString(conf.Connection, conf.EventHubName, nil)
	if err != nil {
		return nil, errors.Join(err, errors.New("failed to create producer client"))
	}

	wg.Add(1)
	go func() {
		<-ctx.Done()
		// ctx is already cancelled, closing needs its own deadline
		closeCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := producerClient.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to close producer client")
		}
		wg.Done()
	}()

	return &EventHub{
		producerClient: producerClient,
		encoder:        enc,
		logger:         logger,
	}, nil
}

// PublishSync sends the event as a single-event batch.
func (e EventHub) PublishSync(event model.SyncEvent) error {
	var (
		buf   []byte
		err   error
		batch *azeventhubs.EventDataBatch
	)

	buf, err = e.encoder.Encode(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	// Leaving PartitionID and PartitionKey unset lets the service choose a partition.
	batch, err = e.producerClient.NewEventDataBatch(ctx, &azeventhubs.EventDataBatchOptions{})
	if err != nil {
		return errors.Join(err, errors.New("failed to create event data batch"))
	}

	err = batch.AddEventData(createEventForSync(buf, e.encoder.ContentType()), nil)
	if errors.Is(err, azeventhubs.ErrEventDataTooLarge) {
		// This one event is too large for a batch, even on its own.
		return errors.Join(err, errors.New("failed to send sync event, event is too large"))
	} else if err != nil {
		return errors.Join(err, errors.New("failed to add sync event to batch"))
	}

	if err = e.producerClient.SendEventDataBatch(ctx, batch, nil); err != nil {
		return errors.Join(err, errors.New("failed to send sync event batch"))
	}
	e.logger.Debug().Str("cycle", event.CycleID).Msg("sync event sent to event hub")

	return nil
}

func createEventForSync(buf []byte, contentType string) *azeventhubs.EventData {
	return &azeventhubs.EventData{
		Body:        buf,
		ContentType: &contentType,
	}
}
