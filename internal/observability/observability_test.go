package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for input, want := range cases {
		require.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("echostash-qa-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))
}

func TestNewStructuredLogger(t *testing.T) {
	logger, err := NewStructuredLogger("echostash-qa-test", "debug", "")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("structured logger ready", zap.String("component", "test"))

	InitServerLogger("echostash-qa-test", "info", "stage")
	require.NotNil(t, ServerLogger)
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9191")
	require.NoError(t, err)
	require.Equal(t, 9191, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}
