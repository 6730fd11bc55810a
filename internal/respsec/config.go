// Package respsec enforces response-identifier ownership: outbound response
// ids are rewritten into opaque tokens carrying the owning user and team,
// and inbound ids are resolved back and checked against the caller before
// being dispatched upstream.
package respsec

// SecurityConfig is the process-wide security configuration.
// An empty SigningKey disables tagging (ids pass through unmodified) but
// does not disable access-control evaluation when a cached mapping exists.
type SecurityConfig struct {
	SigningKey string
	Disabled   bool
}

// ConfigSource supplies the security configuration. It is read at call
// time so a reloadable configuration layer can swap values between
// requests.
type ConfigSource interface {
	Security() SecurityConfig
}

// StaticConfig is a ConfigSource with fixed values.
type StaticConfig SecurityConfig

func (c StaticConfig) Security() SecurityConfig {
	return SecurityConfig(c)
}
