package channel

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
)

// Frame kinds.
const (
	KindCall   = "call"
	KindResult = "result"
	KindEvent  = "event"
)

// Frame is one websocket message between the bridge and the worker.
type Frame struct {
	Kind   string             `json:"kind"`
	ID     string             `json:"id,omitempty"`
	Method string             `json:"method,omitempty"`
	Params json.RawMessage    `json:"params,omitempty"`
	Result json.RawMessage    `json:"result,omitempty"`
	Data   []byte             `json:"data,omitempty"`
	Zstd   bool               `json:"zstd,omitempty"`
	Error  *fserrors.RawError `json:"error,omitempty"`
	Event  string             `json:"event,omitempty"`
	Args   json.RawMessage    `json:"args,omitempty"`
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// EncodeFrame serializes f. Data longer than threshold is zstd-compressed;
// a threshold <= 0 disables compression. f itself is not modified.
func EncodeFrame(f *Frame, threshold int) ([]byte, error) {
	out := *f
	if threshold > 0 && len(out.Data) > threshold && !out.Zstd {
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		out.Data = enc.EncodeAll(f.Data, make([]byte, 0, len(f.Data)/2))
		out.Zstd = true
	}
	return sonic.Marshal(&out)
}

// DecodeFrame parses a frame and inflates compressed data.
func DecodeFrame(b []byte) (*Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Kind == "" {
		return nil, fmt.Errorf("decode frame: missing kind")
	}
	if f.Zstd {
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		data, err := dec.DecodeAll(f.Data, nil)
		if err != nil {
			return nil, fmt.Errorf("inflate frame data: %w", err)
		}
		f.Data = data
		f.Zstd = false
	}
	return &f, nil
}

// Marshal encodes v for a Params, Result or Args field.
func Marshal(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return sonic.Marshal(v)
}

// Unmarshal decodes a Params, Result or Args field into v.
func Unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty payload")
	}
	return sonic.Unmarshal(raw, v)
}
