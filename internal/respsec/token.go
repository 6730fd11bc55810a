package respsec

import (
	"strings"
	"sync"

	"respgate/internal/crypto"

	"go.uber.org/zap"
)

const (
	// idMarker is the prefix every response identifier carries, tagged
	// or not.
	idMarker = "resp_"

	// payloadNamespace marks a decrypted payload as belonging to this
	// id scheme. Other schemes share the same encryption primitive, so
	// a payload without this marker is not ours.
	payloadNamespace = "litellm_proxy:responses_api:"

	fieldResponseID = "response_id:"
	fieldUserID     = "user_id:"
	fieldTeamID     = "team_id:"
)

// Owner identifies who is entitled to reuse a response identifier. An
// empty field means unconstrained on that axis.
type Owner struct {
	UserID string
	TeamID string
}

// IsZero reports whether the owner carries no constraints at all.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.TeamID == ""
}

// Encrypter is the symmetric primitive contract the codec builds on.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(opaque string) (string, error)
}

// Detagged is the result of decoding a token minted by Tag.
type Detagged struct {
	PlaintextID string
	Owner       Owner
}

// Codec encodes and decodes opaque response-id tokens. The signing key is
// read from the config source on every call; the derived cipher is cached
// until the key changes.
type Codec struct {
	config ConfigSource
	logger *zap.Logger

	mu      sync.Mutex
	lastKey string
	enc     Encrypter
}

func NewCodec(config ConfigSource, logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{
		config: config,
		logger: logger,
	}
}

// encrypter returns the cipher for the currently configured signing key,
// or false when no key is configured.
func (c *Codec) encrypter() (Encrypter, bool) {
	key := c.config.Security().SigningKey
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enc == nil || c.lastKey != key {
		svc, err := crypto.NewService(key)
		if err != nil {
			c.logger.Debug("unable to build response id cipher", zap.Error(err))
			return nil, false
		}
		c.enc = svc
		c.lastKey = key
	}

	return c.enc, true
}

// Tag rewrites a plaintext response id into an opaque token embedding the
// owner, keeping the resp_ marker. The second return reports whether
// tagging was applied: with no signing key configured the input is
// returned unchanged so callers can skip the redundant cache write.
func (c *Codec) Tag(plaintextID string, owner Owner) (string, bool) {
	enc, ok := c.encrypter()
	if !ok {
		c.logger.Debug("response id tagging skipped: no signing key configured")
		return plaintextID, false
	}

	payload := payloadNamespace +
		fieldResponseID + plaintextID + ";" +
		fieldUserID + owner.UserID + ";" +
		fieldTeamID + owner.TeamID

	opaque, err := enc.Encrypt(payload)
	if err != nil {
		c.logger.Debug("response id tagging skipped: encrypt failed", zap.Error(err))
		return plaintextID, false
	}

	return idMarker + opaque, true
}

// Detag inspects id and reports whether it is a token minted by Tag.
// Anything else — no marker, an undecryptable payload, or a payload from a
// foreign scheme sharing the same primitive — is opaque: (zero, false).
// A payload carrying the namespace but too few fields decodes to the
// original token with an unconstrained owner rather than failing.
func (c *Codec) Detag(id string) (Detagged, bool) {
	opaque, found := strings.CutPrefix(id, idMarker)
	if !found || opaque == "" {
		return Detagged{}, false
	}

	enc, ok := c.encrypter()
	if !ok {
		return Detagged{}, false
	}

	payload, err := enc.Decrypt(opaque)
	if err != nil {
		// Undecodable tokens fall through to the mapping cache path.
		return Detagged{}, false
	}

	if !strings.HasPrefix(payload, payloadNamespace) {
		return Detagged{}, false
	}

	parts := strings.Split(payload, ";")
	if len(parts) < 2 {
		// Marker matched but the payload shape did not: treat the token
		// itself as the id, with no ownership constraints.
		return Detagged{PlaintextID: id}, true
	}

	det := Detagged{
		PlaintextID: fieldValue(parts[0], fieldResponseID),
		Owner: Owner{
			UserID: fieldValue(parts[1], fieldUserID),
		},
	}
	// A missing team field means unconstrained on the team axis.
	if len(parts) >= 3 {
		det.Owner.TeamID = fieldValue(parts[2], fieldTeamID)
	}

	return det, true
}

// fieldValue returns everything after the last occurrence of label, or ""
// when the label is absent.
func fieldValue(part, label string) string {
	idx := strings.LastIndex(part, label)
	if idx < 0 {
		return ""
	}
	return part[idx+len(label):]
}
