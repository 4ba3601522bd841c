package logger

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbarPrepare(t *testing.T) {
	l := &RollbarLogger{}
	err := pkgerrors.New("disk full")
	extras := map[string]interface{}{"driver": "sqlite"}

	tests := []struct {
		name string
		msg  string
		args []interface{}
		want []interface{}
	}{
		{"message only", "server started", nil, []interface{}{"server started"}},
		{"strings folded into message", "could not remove file", []interface{}{"thumbnails/a.png", err},
			[]interface{}{"could not remove file thumbnails/a.png", err}},
		{"extras kept", "connected to database", []interface{}{extras}, []interface{}{"connected to database", extras}},
		{"numbers folded", "request", []interface{}{"GET", "/api/catalog", 200},
			[]interface{}{"request GET /api/catalog 200"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare(tt.msg, tt.args))
		})
	}
}

func TestWrappedErrorsKeepTheirStack(t *testing.T) {
	err := pkgerrors.Wrap(pkgerrors.New("disk full"), "saving upload")
	frames, ok := errors.StackTracer(err)
	require.True(t, ok)
	assert.NotEmpty(t, frames)
}
