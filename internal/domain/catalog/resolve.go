package catalog

import "strings"

// Match classifies the outcome of resolving a song identifier.
type Match int

const (
	// MatchNotFound means no song id, name, or alias matched the query.
	MatchNotFound Match = iota
	// MatchUnique means exactly one song matched.
	MatchUnique
	// MatchAmbiguous means the query matched more than one song.
	MatchAmbiguous
)

func (m Match) String() string {
	switch m {
	case MatchUnique:
		return "unique"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the result of resolving a user-supplied song identifier.
// SongID is set only for a unique match; Candidates carries the sorted
// matching ids for an ambiguous one.
type Resolution struct {
	Kind       Match
	SongID     string
	Candidates []string
}

// Resolve maps an arbitrary identifier (song id, display name, or alias,
// matched case-insensitively) onto a catalog song.
func (c *Catalog) Resolve(query string) Resolution {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Resolution{Kind: MatchNotFound}
	}
	ids := c.current.Load().byQuery[q]
	switch len(ids) {
	case 0:
		return Resolution{Kind: MatchNotFound}
	case 1:
		return Resolution{Kind: MatchUnique, SongID: ids[0]}
	default:
		out := make([]string, len(ids))
		copy(out, ids)
		return Resolution{Kind: MatchAmbiguous, Candidates: out}
	}
}
