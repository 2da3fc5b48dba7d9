package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Metadata describes the request holding a processing lock. Fingerprint
// identifies the request payload; see Fingerprint.
type Metadata struct {
	Method      string `msgpack:"method"`
	Path        string `msgpack:"path"`
	Fingerprint string `msgpack:"fingerprint,omitempty"`
}

// Response is what a handler produced and what a replay returns.
type Response struct {
	Status int         `msgpack:"status"`
	Header http.Header `msgpack:"header,omitempty"`
	Body   []byte      `msgpack:"body"`
}

// ProcessingLock marks a key as being handled right now.
type ProcessingLock struct {
	Key       string    `msgpack:"key"`
	Metadata  Metadata  `msgpack:"metadata"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// ReplayRecord is the recorded outcome of a completed request.
type ReplayRecord struct {
	Key         string    `msgpack:"key"`
	Fingerprint string    `msgpack:"fingerprint,omitempty"`
	Response    Response  `msgpack:"response"`
	CreatedAt   time.Time `msgpack:"created_at"`
}

// Fingerprint returns the hex SHA-256 of a request payload.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func encode(v any) ([]byte, error) { return msgpack.Marshal(v) }

func decodeReplay(b []byte) (ReplayRecord, error) {
	var r ReplayRecord
	err := msgpack.Unmarshal(b, &r)
	return r, err
}
