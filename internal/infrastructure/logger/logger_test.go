package logger_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"values-server/services/articulator-api/internal/config"
	"values-server/services/articulator-api/internal/infrastructure/logger"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected zerolog.Level
	}{
		{name: "debug", logLevel: "debug", expected: zerolog.DebugLevel},
		{name: "uppercase warn", logLevel: "WARN", expected: zerolog.WarnLevel},
		{name: "empty defaults to info", logLevel: "", expected: zerolog.InfoLevel},
		{name: "garbage defaults to info", logLevel: "loud", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.New(&config.Config{
				ServiceName: "articulator-api",
				Environment: "development",
				LogLevel:    tt.logLevel,
			})
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}
