package battle

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// battleIDPrefix versions the ID namespace so routing and sharding can stay
// backward compatible if the format ever changes.
const battleIDPrefix = "btl1_"

// NewBattleID returns an opaque, URL-safe battle identifier: the versioned
// prefix plus 128 bits of UUID entropy. Collisions are not checked; the
// unique index on battleId is the backstop.
func NewBattleID() string {
	u := uuid.New()
	return battleIDPrefix + hex.EncodeToString(u[:])
}

// IsBattleID reports whether id belongs to the current namespace.
func IsBattleID(id string) bool {
	return strings.HasPrefix(id, battleIDPrefix)
}
