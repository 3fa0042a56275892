package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/climate-sources/internal/climate"
)

// codecVersion is stored in every envelope; entries of another version read as misses.
const codecVersion = 1

var errVersion = errors.New("cache entry version mismatch")

type envelope struct {
	Version  int             `json:"v"`
	StoredAt time.Time       `json:"stored_at"`
	Series   *climate.Series `json:"series"`
}

func encode(s *climate.Series, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{Version: codecVersion, StoredAt: now.UTC(), Series: s})
}

func decode(raw []byte) (*climate.Series, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("%w: got %d", errVersion, env.Version)
	}
	if env.Series == nil {
		return nil, errors.New("decode cache entry: empty series")
	}
	if err := env.Series.Validate(); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return env.Series, nil
}
