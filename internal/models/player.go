package models

type PlayerKind string

const (
	PlayerAccount  PlayerKind = "account"
	PlayerDevice   PlayerKind = "device"
	PlayerJoinCode PlayerKind = "joincode"
)

var ValidPlayerKinds = map[PlayerKind]bool{
	PlayerAccount:  true,
	PlayerDevice:   true,
	PlayerJoinCode: true,
}

// Player is a stable identity inside the game server, keyed by (Kind, ExternalID).
type Player struct {
	ID          int64      `json:"id"`
	Kind        PlayerKind `json:"kind"`
	ExternalID  string     `json:"-"`
	TimeCreated int64      `json:"time_created"`
}
