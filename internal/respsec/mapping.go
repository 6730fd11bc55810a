package respsec

import (
	"context"
	"encoding/json"
	"time"

	"respgate/internal/cache"
	"respgate/pkg/logging/logging"

	"go.uber.org/zap"
)

const (
	// mappingKeyPrefix namespaces fallback entries away from unrelated
	// cache usage.
	mappingKeyPrefix = "respsec:response_id:"

	// MappingTTL is how long a token→owner fallback mapping lives.
	// Expired entries are indistinguishable from never written.
	MappingTTL = 24 * time.Hour
)

// Mapping is the cached fallback record for one opaque token, used when
// the token cannot be decoded (key rotated or absent).
type Mapping struct {
	ResponseID string `json:"response_id"`
	UserID     string `json:"user_id,omitempty"`
	TeamID     string `json:"team_id,omitempty"`
}

// MappingStore records and recovers token ownership through the shared
// cache. Strictly best-effort: no method ever surfaces an error, and a
// transport failure reads as "no entry".
type MappingStore struct {
	store cache.Store
}

func NewMappingStore(store cache.Store) *MappingStore {
	return &MappingStore{store: store}
}

func mappingKey(token string) string {
	return mappingKeyPrefix + token
}

// Record stores the token→id+owner mapping with the fixed TTL. Failures
// are logged at debug and dropped; the response path must not notice them.
func (m *MappingStore) Record(ctx context.Context, token, plaintextID string, owner Owner) {
	entry := Mapping{
		ResponseID: plaintextID,
		UserID:     owner.UserID,
		TeamID:     owner.TeamID,
	}

	value, err := json.Marshal(entry)
	if err != nil {
		logging.L(ctx).Debug("unable to encode response id mapping", zap.Error(err))
		return
	}

	if err := m.store.Set(ctx, mappingKey(token), value, MappingTTL); err != nil {
		logging.L(ctx).Debug("unable to record response id mapping", zap.Error(err))
	}
}

// Lookup returns the recorded mapping for token, if any. Transport
// failures and undecodable entries are treated as absent.
func (m *MappingStore) Lookup(ctx context.Context, token string) (Mapping, bool) {
	value, ok, err := m.store.Get(ctx, mappingKey(token))
	if err != nil {
		logging.L(ctx).Debug("unable to fetch response id mapping", zap.Error(err))
		return Mapping{}, false
	}
	if !ok {
		return Mapping{}, false
	}

	var entry Mapping
	if err := json.Unmarshal(value, &entry); err != nil {
		logging.L(ctx).Debug("unable to decode response id mapping", zap.Error(err))
		return Mapping{}, false
	}

	return entry, true
}
