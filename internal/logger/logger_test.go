package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-admission-backend/config"
)

func TestInit(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.LogConfig
		want    zerolog.Level
		wantErr bool
	}{
		{name: "default is info", cfg: config.LogConfig{}, want: zerolog.InfoLevel},
		{name: "debug flag wins over level", cfg: config.LogConfig{Debug: true, Level: "error"}, want: zerolog.DebugLevel},
		{name: "explicit level", cfg: config.LogConfig{Level: "warn", Output: "stderr"}, want: zerolog.WarnLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "chatty"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Init(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, GetLogger().GetLevel())
		})
	}
}
