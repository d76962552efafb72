//go:build !windows

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"etwtap/internal/config"
)

func TestEventlogOutputUnsupported(t *testing.T) {
	_, err := createMultiWriter([]config.LogOutput{
		{Type: "eventlog", Enabled: true, Eventlog: &config.EventlogConfig{Source: "etwtap", ID: 1000}},
	})
	assert.ErrorIs(t, err, errEventlogUnsupported)

	// Disabled eventlog outputs from the defaults never reach the writer.
	_, err = createMultiWriter(config.DefaultConfig().Logging.Outputs)
	assert.NoError(t, err)
}
