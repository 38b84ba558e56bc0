package dispatch

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parameter coercion helpers. Dispatched params arrive as decoded JSON, so
// numbers may be float64 and byte strings are hex-encoded.

func (r Request) Int64(key string) (int64, error) {
	switch v := r.Params[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("param %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("param %s: expected integer, got %T", key, v)
	}
}

func (r Request) Int(key string) (int, error) {
	n, err := r.Int64(key)
	return int(n), err
}

func (r Request) String(key string) (string, error) {
	v, ok := r.Params[key].(string)
	if !ok {
		return "", fmt.Errorf("param %s: expected string, got %T", key, r.Params[key])
	}
	return v, nil
}

// Bytes decodes a hex-encoded parameter, tolerating a 0x prefix.
func (r Request) Bytes(key string) ([]byte, error) {
	v, err := r.String(key)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", key, err)
	}
	return b, nil
}

// Time parses an RFC 3339 timestamp or a unix-seconds number.
func (r Request) Time(key string) (time.Time, error) {
	switch v := r.Params[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("param %s: %w", key, err)
		}
		return t, nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("param %s: expected timestamp, got %T", key, v)
	}
}
