package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithComponentWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", JSONOutput: true, Output: &buf})

	log := WithTenant("router", "firma-1")
	log.Info().Str("channel", "scheduling_firma_1").Msg("listening")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "firma-1", entry["firma_id"])
	assert.Equal(t, "scheduling_firma_1", entry["channel"])
	assert.Equal(t, "listening", entry["message"])
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, gormLevel("silent"))
	assert.Equal(t, gormlogger.Error, gormLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, gormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, gormLevel(""))
}
