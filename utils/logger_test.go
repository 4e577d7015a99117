package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogger(t *testing.T) {
	var buf bytes.Buffer
	ConfigureLogger("debug", "json", &buf)
	defer ConfigureLogger("info", "json", os.Stdout)

	Debug("auction tick", map[string]any{"auction_id": "a1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "auction tick", entry["msg"])
	require.Equal(t, "a1", entry["auction_id"])
	require.Equal(t, "debug", entry["level"])

	ConfigureLogger("nonsense", "json", &buf)
	require.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	require.NotEqual(t, a, b)
	require.Len(t, a, 36)
	require.LessOrEqual(t, a[:13], b[:13], "ids are time ordered")
}
