package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/models"
)

func TestLoadMarkers_Defaults(t *testing.T) {
	m, err := LoadMarkers("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMarkers(), m)
}

func TestParseMarkersFromReader(t *testing.T) {
	yamlContent := `
server_tag: "RCon: "
connect:
  suffix: " joined"
  trailing_tokens: 0
`
	m, err := ParseMarkersFromReader(strings.NewReader(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, "RCon: ", m.ServerTag)
	assert.Equal(t, " joined", m.Connect.Suffix)
	assert.Equal(t, 0, m.Connect.TrailingTokens)
	// untouched keys keep their defaults
	assert.Equal(t, "Player #", m.PlayerPrefix)
	assert.Equal(t, " disconnected", m.Disconnect.Suffix)
	assert.Equal(t, "Mission file: ", m.Mission)
}

func TestParseMarkersFromReader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "connect: [unclosed"},
		{"same suffix", "disconnect:\n  suffix: \" connected\"\n"},
		{"empty suffix", "connect:\n  suffix: \"\"\n"},
		{"negative tokens", "connect:\n  trailing_tokens: -1\n"},
		{"no tag", "server_tag: \"\"\nplayer_prefix: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarkersFromReader(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMarkers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mission: \"Mission read: \"\n"), 0644))

	m, err := LoadMarkers(path)
	require.NoError(t, err)
	assert.Equal(t, "Mission read: ", m.Mission)

	_, err = LoadMarkers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
