package ingest

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// Payload fields a WebSocket vector id is derived from.
const (
	FieldMsgIndex  = "msg_index"
	FieldTimestamp = "timestamp"
)

// DecodeBatch splits an inbound message into vector objects. A single JSON
// object yields one item, an array of objects yields one item per element.
// Anything else is a DecodeError.
func DecodeBatch(session string, raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, relayerrors.NewDecodeError(session, "empty payload")
	}
	if !json.Valid(trimmed) {
		return nil, relayerrors.NewDecodeError(session, "invalid JSON")
	}

	switch trimmed[0] {
	case '{':
		item, err := compact(session, trimmed)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{item}, nil

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, relayerrors.NewDecodeError(session, "invalid JSON array").WithCause(err)
		}
		items := make([]json.RawMessage, 0, len(elems))
		for i, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				return nil, relayerrors.NewDecodeError(session, fmt.Sprintf("batch element %d is not an object", i))
			}
			item, err := compact(session, elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil

	default:
		return nil, relayerrors.NewDecodeError(session, "expected an object or an array of objects")
	}
}

// DecodeValue validates an HTTP body. Any JSON value is accepted.
func DecodeValue(session string, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, relayerrors.NewDecodeError(session, "invalid JSON")
	}
	return compact(session, trimmed)
}

// DeriveID builds the WebSocket vector id "v<msg_index>_<timestamp>".
// String fields are used verbatim, other scalars as their JSON literal.
func DeriveID(session string, item json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return "", relayerrors.NewDecodeError(session, "vector is not an object").WithCause(err)
	}

	index, err := fieldText(session, fields, FieldMsgIndex)
	if err != nil {
		return "", err
	}
	ts, err := fieldText(session, fields, FieldTimestamp)
	if err != nil {
		return "", err
	}
	return "v" + index + "_" + ts, nil
}

func fieldText(session string, fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", relayerrors.NewMalformedPayloadError(session, "missing field "+name)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", relayerrors.NewMalformedPayloadError(session, "invalid field "+name).WithCause(err)
		}
		if s == "" {
			return "", relayerrors.NewMalformedPayloadError(session, "empty field "+name)
		}
		return s, nil
	case '{', '[':
		return "", relayerrors.NewMalformedPayloadError(session, "field "+name+" must be a scalar")
	default:
		return string(raw), nil
	}
}

func compact(session string, raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, relayerrors.NewDecodeError(session, "invalid JSON").WithCause(err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
