package models

// Markers defines the substrings that identify events in a server log. The YAML
// shape is the format of the optional markers file.
type Markers struct {
	// ServerTag precedes every player line, e.g. "BattlEye Server: ".
	ServerTag string `json:"serverTag" yaml:"server_tag"`
	// PlayerPrefix precedes the numeric player id, e.g. "Player #".
	PlayerPrefix string      `json:"playerPrefix" yaml:"player_prefix"`
	Connect      EventMarker `json:"connect" yaml:"connect"`
	Disconnect   EventMarker `json:"disconnect" yaml:"disconnect"`
	Mission      string      `json:"mission" yaml:"mission"`
}

// EventMarker describes the end of a player line.
type EventMarker struct {
	Suffix string `json:"suffix" yaml:"suffix"`
	// TrailingTokens is the number of space separated tokens between the player
	// name and the suffix (the address in connect lines).
	TrailingTokens int `json:"trailingTokens" yaml:"trailing_tokens"`
}

// DefaultMarkers returns the markers of a stock BattlEye-enabled server.
func DefaultMarkers() Markers {
	return Markers{
		ServerTag:    "BattlEye Server: ",
		PlayerPrefix: "Player #",
		Connect:      EventMarker{Suffix: " connected", TrailingTokens: 1},
		Disconnect:   EventMarker{Suffix: " disconnected", TrailingTokens: 0},
		Mission:      "Mission file: ",
	}
}
