package models

// EstimationKey is one persisted run of the Rasch estimator.
type EstimationKey struct {
	ID          int64 `json:"id"`
	GameID      int64 `json:"game_id"`
	NumGame     int   `json:"numgame"`
	UserID      int64 `json:"user_id"`
	TimeCreated int64 `json:"time_created"`
}

type ItemEstimate struct {
	ItemID    int64    `json:"item_id"`
	B         float64  `json:"b"`
	SE        *float64 `json:"se_b"`
	Infit     *float64 `json:"infit"`
	Outfit    *float64 `json:"outfit"`
	StdInfit  *float64 `json:"std_infit"`
	StdOutfit *float64 `json:"std_outfit"`
	Count0    int      `json:"count0"`
	Count1    int      `json:"count1"`
	CountNull int      `json:"countnull"`
	Percent   *float64 `json:"percent"`
	// Extreme marks difficulties that finished the iterations at the clamp.
	Extreme bool `json:"extreme"`
}

type PersonEstimate struct {
	PlayerID int64   `json:"player_id"`
	Theta    float64 `json:"theta"`
	Extreme  bool    `json:"extreme"`
}

// EstimationSnapshot is a key together with its child estimate rows.
type EstimationSnapshot struct {
	Key     EstimationKey    `json:"key"`
	Items   []ItemEstimate   `json:"items"`
	Persons []PersonEstimate `json:"persons"`
}
