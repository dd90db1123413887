// Package cron decides whether a request claiming to come from the
// scheduler may run privileged jobs.
//
// Authorized requests carry "Authorization: Bearer <CRON_SECRET>". When no
// secret is configured every request is allowed in development mode and
// refused in any other mode.
package cron

import (
	"crypto/subtle"
	"net/http"
	"os"

	"bracket-pool-services/internal/logger"

	"go.uber.org/zap"
)

const (
	SecretEnvKey    = "CRON_SECRET"
	ModeEnvKey      = "APP_ENV"
	ModeDevelopment = "development"

	bearerPrefix = "Bearer "
)

// Settings supplies the secret and runtime mode. Both are read on every call.
type Settings interface {
	Secret() string
	Mode() string
}

// EnvSettings reads the process environment on each call, with no
// trimming and no defaults: an unset mode is "".
type EnvSettings struct {
	SecretKey string
	ModeKey   string
}

func NewEnvSettings() EnvSettings {
	return EnvSettings{SecretKey: SecretEnvKey, ModeKey: ModeEnvKey}
}

func (s EnvSettings) Secret() string { return os.Getenv(s.SecretKey) }
func (s EnvSettings) Mode() string   { return os.Getenv(s.ModeKey) }

// StaticSettings is a fixed Settings value, mostly for tests and tooling.
type StaticSettings struct {
	CronSecret  string
	RuntimeMode string
}

func (s StaticSettings) Secret() string { return s.CronSecret }
func (s StaticSettings) Mode() string   { return s.RuntimeMode }

type Authorizer struct {
	settings Settings
	log      *zap.Logger
}

func NewAuthorizer(settings Settings, log *zap.Logger) *Authorizer {
	if settings == nil {
		settings = NewEnvSettings()
	}
	return &Authorizer{settings: settings, log: logger.OrNop(log)}
}

// IsAuthorized never panics; a nil request is treated as one without headers.
func (a *Authorizer) IsAuthorized(r *http.Request) bool {
	header := ""
	if r != nil {
		header = r.Header.Get("Authorization")
	}
	return a.AuthorizeHeader(header)
}

// AuthorizeHeader evaluates a raw Authorization header value.
func (a *Authorizer) AuthorizeHeader(value string) bool {
	secret := a.settings.Secret()
	if secret == "" {
		mode := a.settings.Mode()
		a.log.Warn("CRON_SECRET is not set; bypassing cron authorization (development only)",
			zap.String("mode", mode),
			zap.Bool("allowed", mode == ModeDevelopment),
		)
		return mode == ModeDevelopment
	}

	expected := bearerPrefix + secret
	return subtle.ConstantTimeCompare([]byte(value), []byte(expected)) == 1
}
