package respsec

import (
	"context"

	"respgate/internal/auth"
	"respgate/internal/metrics"
	"respgate/internal/responses"
	"respgate/pkg/logging/logging"

	"go.uber.org/zap"
)

// Gate enforces response-id ownership across the three call shapes:
// inbound resolution, outbound tagging, and streaming tagging. It holds no
// per-request state; every invocation is a function of its inputs and the
// injected collaborators.
type Gate struct {
	config   ConfigSource
	codec    *Codec
	mappings *MappingStore
}

func NewGate(config ConfigSource, codec *Codec, mappings *MappingStore) *Gate {
	return &Gate{
		config:   config,
		codec:    codec,
		mappings: mappings,
	}
}

// Resolve rewrites a caller-supplied response id back to the plaintext id
// the provider knows, after checking that the caller owns it. Ids this
// layer never tagged pass through unchanged. The only error returned is
// *AccessDeniedError; every other anomaly degrades to passthrough.
func (g *Gate) Resolve(ctx context.Context, id string, caller auth.CallerIdentity) (string, error) {
	if det, ok := g.codec.Detag(id); ok {
		if det.Owner.IsZero() {
			return det.PlaintextID, nil
		}
		if err := g.authorize(ctx, det.Owner, caller); err != nil {
			return "", err
		}
		return det.PlaintextID, nil
	}

	mapping, found := g.mappings.Lookup(ctx, id)
	if !found {
		// Not one of ours and no recorded mapping: an untagged id,
		// passed through as-is.
		return id, nil
	}

	owner := Owner{UserID: mapping.UserID, TeamID: mapping.TeamID}
	if err := g.authorize(ctx, owner, caller); err != nil {
		return "", err
	}
	return mapping.ResponseID, nil
}

func (g *Gate) authorize(ctx context.Context, owner Owner, caller auth.CallerIdentity) error {
	dec := Authorize(owner, caller, g.config.Security().Disabled)

	if !dec.Allowed {
		metrics.DeniedTotal.WithLabelValues(dec.Scope).Inc()
		logging.L(ctx).Warn("response id access denied",
			zap.String("scope", dec.Scope),
			zap.String("caller_user_id", caller.UserID),
			zap.String("caller_team_id", caller.TeamID),
		)
		return &AccessDeniedError{Scope: dec.Scope}
	}

	if dec.Bypassed {
		logging.L(ctx).Debug("response id security disabled: allowing mismatched access",
			zap.String("scope", dec.Scope),
			zap.String("caller_user_id", caller.UserID),
			zap.String("caller_team_id", caller.TeamID),
		)
	}

	return nil
}

// TagResponse rewrites the payload's primary response id into an opaque
// token owned by the caller and best-effort records the mapping. Payloads
// without an id of the expected shape, and all tagging failures, leave the
// payload unchanged.
func (g *Gate) TagResponse(ctx context.Context, payload responses.Payload, caller auth.CallerIdentity) {
	if g.config.Security().Disabled {
		return
	}

	plaintextID := payload.PrimaryResponseID()
	if plaintextID == "" {
		return
	}

	owner := Owner{UserID: caller.UserID, TeamID: caller.TeamID}
	token, applied := g.codec.Tag(plaintextID, owner)
	if !applied || token == plaintextID {
		return
	}

	payload.SetPrimaryResponseID(token)
	metrics.TaggedTotal.Inc()

	// Best-effort; a failed write only weakens the fallback path.
	g.mappings.Record(ctx, token, plaintextID, owner)
}

// TagStream relays a response stream, tagging each identifier-bearing
// event in emission order exactly as TagResponse does and forwarding
// everything else untouched. Chunk boundaries and ordering are preserved;
// cancelling ctx stops the relay and the upstream pull.
func (g *Gate) TagStream(ctx context.Context, in <-chan responses.StreamResult, caller auth.CallerIdentity) <-chan responses.StreamResult {
	out := make(chan responses.StreamResult)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-in:
				if !ok {
					return
				}
				if res.Event != nil {
					g.TagResponse(ctx, res.Event, caller)
				}
				select {
				case <-ctx.Done():
					return
				case out <- res:
				}
			}
		}
	}()

	return out
}
