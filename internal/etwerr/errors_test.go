package etwerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("access denied")

	err := StartTraceFailed(cause)
	assert.ErrorIs(t, err, ErrStartTraceFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to start ETW trace: access denied", err.Error())

	assert.ErrorIs(t, StopTraceFailed(cause), ErrStopTraceFailed)
	assert.Equal(t, "invalid provider GUID: xyz", InvalidProviderGUID("xyz").Error())
	assert.Equal(t, "invalid configuration: channel capacity must be positive",
		InvalidConfig("channel capacity must be %s", "positive").Error())
	assert.Equal(t, "file not found: C:\\a.etl", FileNotFound(`C:\a.etl`).Error())
	assert.ErrorIs(t, Channel("receiver detached"), ErrChannel)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("other"), ""},
		{ErrAlreadyRunning, "AlreadyRunning"},
		{ErrNotRunning, "NotRunning"},
		{StartTraceFailed(errors.New("x")), "StartTraceFailed"},
		{StopTraceFailed(errors.New("x")), "StopTraceFailed"},
		{InvalidProviderGUID("x"), "InvalidProviderGuid"},
		{InvalidConfig("x"), "InvalidConfig"},
		{FileNotFound("x"), "FileNotFound"},
		{Channel("x"), "ChannelError"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}
