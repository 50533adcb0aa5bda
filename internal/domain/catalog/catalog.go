// Package catalog provides the read-only difficulty catalog: per-chart
// difficulty constants, song metadata, and alias resolution. The catalog is
// loaded once at startup and shared by every request; Reload installs a new
// immutable snapshot atomically so concurrent readers never observe a
// partially built catalog.
package catalog

import (
	"context"
	"sync/atomic"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// Sources names the three external data files the catalog is built from.
type Sources struct {
	InfoPath       string // song metadata CSV
	DifficultyPath string // per-tier difficulty constant CSV
	AliasPath      string // song alias YAML
}

// Entry is the catalog row for one chart.
type Entry struct {
	SongID   string
	Tier     save.Tier
	Constant float64
	SongName string
	Composer string
	Aliases  []string
}

// chartKey identifies one chart inside the lookup maps.
type chartKey struct {
	songID string
	tier   save.Tier
}

// snapshot is one immutable build of the catalog. All maps are written only
// during load and never mutated afterwards.
type snapshot struct {
	charts  map[chartKey]Entry
	songs   map[string]songInfo  // song id -> metadata
	byQuery map[string][]string  // lowercased name/alias/id -> distinct song ids
}

type songInfo struct {
	name     string
	composer string
	aliases  []string
}

// Catalog is a shared handle over the current snapshot.
type Catalog struct {
	sources Sources
	current atomic.Pointer[snapshot]
}

// Load reads all sources and returns a ready catalog. Any missing source or
// malformed row fails the whole load with ErrLoad; the catalog never serves
// partial data.
func Load(ctx context.Context, src Sources) (*Catalog, error) {
	snap, err := buildSnapshot(ctx, src)
	if err != nil {
		return nil, err
	}
	c := &Catalog{sources: src}
	c.current.Store(snap)
	return c, nil
}

// Reload rebuilds the snapshot from the original sources and swaps it in
// atomically. On failure the previous snapshot stays active.
func (c *Catalog) Reload(ctx context.Context) error {
	snap, err := buildSnapshot(ctx, c.sources)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	return nil
}

// Lookup returns the catalog entry for a chart, if the chart has a known
// difficulty constant.
func (c *Catalog) Lookup(songID string, tier save.Tier) (Entry, bool) {
	snap := c.current.Load()
	e, ok := snap.charts[chartKey{songID: songID, tier: tier}]
	return e, ok
}

// SongName returns the display name for a song id, falling back to the id
// itself for songs missing from the metadata source.
func (c *Catalog) SongName(songID string) string {
	if info, ok := c.current.Load().songs[songID]; ok {
		return info.name
	}
	return songID
}

// SongMeta is the song-level metadata for one song id.
type SongMeta struct {
	SongID   string
	Name     string
	Composer string
	Aliases  []string
}

// Song returns the metadata for a song id.
func (c *Catalog) Song(songID string) (SongMeta, bool) {
	info, ok := c.current.Load().songs[songID]
	if !ok {
		return SongMeta{}, false
	}
	return SongMeta{
		SongID:   songID,
		Name:     info.name,
		Composer: info.composer,
		Aliases:  append([]string(nil), info.aliases...),
	}, true
}

// Charts returns every chart of a song that has a known constant, ordered by
// tier.
func (c *Catalog) Charts(songID string) []Entry {
	snap := c.current.Load()
	var out []Entry
	for _, tier := range save.Tiers() {
		if e, ok := snap.charts[chartKey{songID: songID, tier: tier}]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of charts with a known constant.
func (c *Catalog) Len() int {
	return len(c.current.Load().charts)
}

// Songs reports the number of distinct songs in the metadata source.
func (c *Catalog) Songs() int {
	return len(c.current.Load().songs)
}
