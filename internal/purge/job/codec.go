package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/edgecomet/purgebridge/pkg/types"
)

// Frame markers. Plain JSON payloads start with '{' and carry no marker.
const (
	frameSnappy byte = 0x01
	frameLZ4    byte = 0x02
)

// ErrDecode is returned for payloads that cannot be turned back into a Task
var ErrDecode = errors.New("task decode failed")

// Encode serializes t, compressing with algorithm when the JSON is at least
// types.CompressionMinSize bytes.
func Encode(t Task, algorithm string) ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	if len(raw) < types.CompressionMinSize {
		return raw, nil
	}

	switch algorithm {
	case types.CompressionSnappy:
		return append([]byte{frameSnappy}, snappy.Encode(nil, raw)...), nil

	case types.CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(frameLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			w.Close()
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return raw, nil
	}
}

// Decode reverses Encode; the compression is detected from the frame marker
func Decode(data []byte) (Task, error) {
	var t Task
	if len(data) == 0 {
		return t, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	raw := data
	switch data[0] {
	case frameSnappy:
		out, err := snappy.Decode(nil, data[1:])
		if err != nil {
			return t, fmt.Errorf("%w: snappy: %v", ErrDecode, err)
		}
		raw = out
	case frameLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data[1:])))
		if err != nil {
			return t, fmt.Errorf("%w: lz4: %v", ErrDecode, err)
		}
		raw = out
	}

	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return t, nil
}
