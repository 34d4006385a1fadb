package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "defaultJSON", level: "info", format: "", enabled: zapcore.InfoLevel},
		{name: "consoleDebug", level: "DEBUG", format: "console", enabled: zapcore.DebugLevel},
		{name: "warnOnly", level: "warn", format: "json", enabled: zapcore.WarnLevel},
		{name: "badLevel", level: "loud", format: "json", wantErr: true},
		{name: "badFormat", level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New("order-api", tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.enabled))
			assert.False(t, log.Core().Enabled(tt.enabled-1))
		})
	}
}
