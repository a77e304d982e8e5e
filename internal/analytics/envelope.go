package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const envelopeVersion = 1

// envelope is the stored form of an Entry. The payload is kept as the exact
// bytes the backend returned.
type envelope struct {
	Version     int    `msgpack:"v"`
	PortfolioID int64  `msgpack:"pid"`
	Generation  uint64 `msgpack:"gen"`
	StoredAt    int64  `msgpack:"at"`
	Payload     []byte `msgpack:"payload"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return msgpack.Marshal(envelope{
		Version:     envelopeVersion,
		PortfolioID: e.PortfolioID,
		Generation:  e.Generation,
		StoredAt:    e.StoredAt.UnixNano(),
		Payload:     e.Payload,
	})
}

// decodeEntry rejects anything that is not a current-version envelope for id
// carrying a JSON payload.
func decodeEntry(id int64, raw []byte) (Entry, error) {
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return Entry{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return Entry{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.PortfolioID != id {
		return Entry{}, fmt.Errorf("envelope for portfolio %d stored under %d", env.PortfolioID, id)
	}
	if !json.Valid(env.Payload) {
		return Entry{}, fmt.Errorf("payload is not valid JSON")
	}
	return Entry{
		PortfolioID: env.PortfolioID,
		Payload:     json.RawMessage(env.Payload),
		StoredAt:    time.Unix(0, env.StoredAt),
		Generation:  env.Generation,
	}, nil
}
