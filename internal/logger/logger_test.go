package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docsign/internal/config"
	"docsign/internal/logger"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "docsign.log")
	log, err := logger.New(&config.LogConfig{Level: "warn", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("dropped below level")
	log.Warn("protocol expired", zap.String("protocol", "APR-DOC-2026-7K3QZ"))
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "protocol expired", entry["msg"])
	assert.Equal(t, "APR-DOC-2026-7K3QZ", entry["protocol"])
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	log, err := logger.New(&config.LogConfig{Level: "chatty", Format: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}
