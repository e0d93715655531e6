package state

import (
	"fmt"
	"strconv"
	"strings"
)

// PlayerID is the stable handle of a connected player. It outlives the
// player's transient objects, so entities bound to a player store the ID and
// resolve it when they need the player.
type PlayerID uint64

// String renders the ID the way the rest of the server keys actors.
func (id PlayerID) String() string {
	return "player-" + strconv.FormatUint(uint64(id), 10)
}

// ParsePlayerID accepts both "player-7" and "7".
func ParsePlayerID(raw string) (PlayerID, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "player-")
	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid player id %q", raw)
	}
	return PlayerID(value), nil
}

// MaxHealth bounds PlayerStats.Health.
const MaxHealth = 100.0

// PlayerStats is the client-readable view of a player. Only the
// authoritative world writes the fields behind it.
type PlayerStats struct {
	Health          float64 `json:"health" msgpack:"health"`
	Alive           bool    `json:"alive" msgpack:"alive"`
	InventoryCount  uint32  `json:"inventoryCount" msgpack:"inventoryCount"`
	HasShieldCharge bool    `json:"hasShieldCharge" msgpack:"hasShieldCharge"`
	HasPullCharge   bool    `json:"hasPullCharge" msgpack:"hasPullCharge"`
}
