// Package cache keeps raw upstream payloads for a short TTL so that repeated
// cycles and retries do not hammer the forecast sites.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store persists opaque payloads by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

const encodingText = "text"

// envelope is the persisted entry layout. JSON payloads are embedded as-is;
// anything else is stored as a JSON string and flagged with Encoding.
type envelope struct {
	Timestamp float64         `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Encoding  string          `json:"encoding,omitempty"`
}

func encodeEntry(payload []byte, now time.Time) ([]byte, error) {
	env := envelope{Timestamp: float64(now.UnixNano()) / 1e9}
	if json.Valid(payload) {
		env.Payload = payload
	} else {
		text, err := json.Marshal(string(payload))
		if err != nil {
			return nil, err
		}
		env.Payload = text
		env.Encoding = encodingText
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

// decodeEntry returns the payload of data, or ErrMiss if it is older than ttl
// at now.
func decodeEntry(data []byte, now time.Time, ttl time.Duration) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	age := now.Sub(time.Unix(0, int64(env.Timestamp*1e9)))
	if age > ttl {
		return nil, ErrMiss
	}

	if env.Encoding == encodingText {
		var text string
		if err := json.Unmarshal(env.Payload, &text); err != nil {
			return nil, fmt.Errorf("decode cache payload: %w", err)
		}
		return []byte(text), nil
	}
	return env.Payload, nil
}

// hashKey maps an arbitrary key, usually a URL, to a fixed-length name.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
