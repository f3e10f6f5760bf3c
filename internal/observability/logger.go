package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a child of the global logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
