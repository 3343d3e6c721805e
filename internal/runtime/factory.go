package runtime

import "github.com/rs/zerolog"

// DefaultFactory returns the factory the daemon injects into the registry.
// No real conversation engine ships yet, so every environment gets the
// scripted echo runtime; outside development the substitution is logged
// loudly instead of happening silently.
func DefaultFactory(development bool, log zerolog.Logger) Factory {
	if !development {
		log.Warn().Msg("no conversation engine configured, falling back to scripted echo runtime")
	}
	return ScriptedFactory()
}
