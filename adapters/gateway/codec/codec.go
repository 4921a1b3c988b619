package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Go-routine-4595/equipment-dash/model"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Encoder serializes sync events for the broker gateways.
type Encoder struct {
	format string
}

// NewEncoder accepts "json" (also the default for "") or "msgpack".
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "", FormatJSON:
		return Encoder{format: FormatJSON}, nil
	case FormatMsgpack:
		return Encoder{format: FormatMsgpack}, nil
	default:
		return Encoder{}, fmt.Errorf("unknown payload format %q", format)
	}
}

func (e Encoder) Format() string {
	return e.format
}

// ContentType is the MIME type matching the format.
func (e Encoder) ContentType() string {
	if e.format == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

func (e Encoder) Encode(event model.SyncEvent) ([]byte, error) {
	var (
		b   []byte
		err error
	)

	if e.format == FormatMsgpack {
		b, err = msgpack.Marshal(event)
	} else {
		b, err = json.Marshal(event)
	}
	if err != nil {
		return nil, errors.Join(err, errors.New("failed to encode sync event"))
	}
	return b, nil
}
