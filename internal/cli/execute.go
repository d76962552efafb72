package cli

import (
	"context"

	"github.com/phuslu/log"
	"github.com/tebeka/atexit"

	"etwtap/internal/etwerr"
)

// Execute runs the command tree and exits through atexit so registered
// session cleanup runs on every path.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Str("kind", etwerr.Kind(err)).Msg("etwtap failed")
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
