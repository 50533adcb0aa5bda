// Package save implements the cloud save container pipeline: symmetric
// decryption, archive unpacking, and strict binary decoding of the
// proprietary save format into typed game state.
package save

import "strings"

// Tier is one playable difficulty of a song.
type Tier uint8

// The four difficulty tiers, in wire order (bit index in the presence byte).
const (
	TierEZ Tier = iota
	TierHD
	TierIN
	TierAT

	tierCount = 4
)

var tierNames = [tierCount]string{"EZ", "HD", "IN", "AT"}

// String returns the canonical short name of the tier.
func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "??"
}

// ParseTier maps a canonical short name (case-insensitive) back to a Tier.
func ParseTier(s string) (Tier, bool) {
	for i, name := range tierNames {
		if strings.EqualFold(s, name) {
			return Tier(i), true
		}
	}
	return 0, false
}

// Tiers returns all tiers in wire order.
func Tiers() [tierCount]Tier {
	return [tierCount]Tier{TierEZ, TierHD, TierIN, TierAT}
}

// RawScore is one chart attempt exactly as stored in the save.
type RawScore struct {
	Score     uint32
	Accuracy  float64 // percentage in [0,100] as written by the game client
	FullCombo bool
}

// GameRecord maps song id -> tier -> best attempt.
type GameRecord map[string]map[Tier]RawScore

// KeyEntry is one collectible key inside the gameKey member.
type KeyEntry struct {
	Type  []bool // 5 type bits
	Flags []byte
}

// GameKey mirrors the gameKey member. The two trailing bytes only exist in
// version 3 of the member.
type GameKey struct {
	Keys            map[string]KeyEntry
	LanotaReadKeys  []bool // 6 bits
	CamelliaReadKey []bool // 8 bits

	SideStory4BeginReadKey byte
	OldScoreClearedV390    byte
}

// Save is the fully decoded cloud save. Progress, Settings and User hold the
// member fields keyed by their wire names; values keep the exact decoded type
// (bool, string, byte, uint16, uint64, float32, []bool, []uint64) so that
// Encode can reproduce the original bytes.
type Save struct {
	Progress   map[string]any
	Settings   map[string]any
	User       map[string]any
	GameKey    *GameKey
	GameRecord GameRecord

	// versions records the version head byte of each decoded member so the
	// save re-encodes under the same layout.
	versions map[string]byte
}

// Version reports the decoded version head of a member, or 0 if the member
// was absent.
func (s *Save) Version(member string) byte {
	return s.versions[member]
}

// normalizeSongID strips the artifacts some client versions append to song
// identifiers inside the record table.
func normalizeSongID(raw string) string {
	if strings.HasSuffix(raw, ".0") {
		return raw[:len(raw)-2]
	}
	if i := strings.LastIndex(raw, "Lv"); i >= 0 {
		return raw[:i]
	}
	return raw
}
