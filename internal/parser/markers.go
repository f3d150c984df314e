package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/armalogs/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// LoadMarkers reads a YAML markers file. An empty path returns the defaults.
// Keys missing from the file keep their default values.
func LoadMarkers(filePath string) (models.Markers, error) {
	if filePath == "" {
		return models.DefaultMarkers(), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return models.Markers{}, fmt.Errorf("opening markers file: %w", err)
	}
	defer file.Close()

	return ParseMarkersFromReader(file)
}

// ParseMarkersFromReader parses markers from an io.Reader, e.g.
//
//	server_tag: "BattlEye Server: "
//	player_prefix: "Player #"
//	connect:
//	  suffix: " connected"
//	  trailing_tokens: 1
//	disconnect:
//	  suffix: " disconnected"
//	mission: "Mission file: "
func ParseMarkersFromReader(r io.Reader) (models.Markers, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Markers{}, err
	}

	markers := models.DefaultMarkers()
	if err := yaml.Unmarshal(data, &markers); err != nil {
		return models.Markers{}, fmt.Errorf("parsing markers: %w", err)
	}
	if err := ValidateMarkers(markers); err != nil {
		return models.Markers{}, err
	}

	return markers, nil
}

// ValidateMarkers rejects markers that would match every line or never
// separate connects from disconnects.
func ValidateMarkers(m models.Markers) error {
	switch {
	case m.ServerTag == "" && m.PlayerPrefix == "":
		return errors.New("markers: server_tag and player_prefix are both empty")
	case m.Connect.Suffix == "" || m.Disconnect.Suffix == "":
		return errors.New("markers: connect and disconnect suffixes are required")
	case m.Connect.Suffix == m.Disconnect.Suffix:
		return errors.New("markers: connect and disconnect suffixes must differ")
	case m.Connect.TrailingTokens < 0 || m.Disconnect.TrailingTokens < 0:
		return errors.New("markers: trailing_tokens must not be negative")
	}
	return nil
}
