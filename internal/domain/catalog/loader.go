package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	yamlparser "github.com/knadh/koanf/parsers/yaml"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// buildSnapshot reads and cross-links the three sources. Everything is
// validated up front; the returned snapshot is complete and immutable.
func buildSnapshot(ctx context.Context, src Sources) (*snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	songs, err := loadInfo(src.InfoPath)
	if err != nil {
		return nil, err
	}
	charts, err := loadDifficulty(src.DifficultyPath, songs)
	if err != nil {
		return nil, err
	}
	if err := loadAliases(src.AliasPath, songs); err != nil {
		return nil, err
	}

	// Attach metadata to chart entries and build the query index.
	snap := &snapshot{
		charts:  charts,
		songs:   songs,
		byQuery: make(map[string][]string),
	}
	for key, entry := range charts {
		info := songs[key.songID]
		entry.SongName = info.name
		entry.Composer = info.composer
		entry.Aliases = info.aliases
		charts[key] = entry
	}
	for id, info := range songs {
		indexQuery(snap.byQuery, id, id)
		indexQuery(snap.byQuery, info.name, id)
		for _, alias := range info.aliases {
			indexQuery(snap.byQuery, alias, id)
		}
	}
	return snap, nil
}

func indexQuery(idx map[string][]string, query, songID string) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return
	}
	for _, existing := range idx[q] {
		if existing == songID {
			return
		}
	}
	idx[q] = append(idx[q], songID)
	sort.Strings(idx[q])
}

// loadInfo reads the song metadata CSV: id, song, composer, illustrator,
// then one charter column per tier.
func loadInfo(path string) (map[string]songInfo, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	songs := make(map[string]songInfo, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, want at least 3", ErrLoad, path, i+2, len(row))
		}
		id := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if id == "" || name == "" {
			return nil, fmt.Errorf("%w: %s row %d has empty id or song name", ErrLoad, path, i+2)
		}
		if _, dup := songs[id]; dup {
			return nil, fmt.Errorf("%w: %s row %d duplicates song id %q", ErrLoad, path, i+2, id)
		}
		songs[id] = songInfo{name: name, composer: strings.TrimSpace(row[2])}
	}
	return songs, nil
}

// loadDifficulty reads the per-tier constant CSV: id, EZ, HD, IN, AT. Empty
// cells mean the song has no chart at that tier. Duplicate song rows are
// rejected outright; silently keeping the first would hide data errors.
func loadDifficulty(path string, songs map[string]songInfo) (map[chartKey]Entry, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	charts := make(map[chartKey]Entry, len(rows)*2)
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		if len(row) != 1+len(save.Tiers()) {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrLoad, path, i+2, len(row), 1+len(save.Tiers()))
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, fmt.Errorf("%w: %s row %d has empty song id", ErrLoad, path, i+2)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %s row %d duplicates song id %q", ErrLoad, path, i+2, id)
		}
		seen[id] = true
		for _, tier := range save.Tiers() {
			cell := strings.TrimSpace(row[1+int(tier)])
			if cell == "" {
				continue
			}
			constant, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d tier %s: %v", ErrLoad, path, i+2, tier, err)
			}
			if constant <= 0 {
				return nil, fmt.Errorf("%w: %s row %d tier %s: constant %v is not positive", ErrLoad, path, i+2, tier, constant)
			}
			key := chartKey{songID: id, tier: tier}
			if _, dup := charts[key]; dup {
				return nil, fmt.Errorf("%w: duplicate chart (%s, %s)", ErrLoad, id, tier)
			}
			charts[key] = Entry{SongID: id, Tier: tier, Constant: constant}
		}
		if _, known := songs[id]; !known {
			// A constant without metadata is still servable; the display
			// name falls back to the id.
			songs[id] = songInfo{name: id}
		}
	}
	return charts, nil
}

// loadAliases reads the alias YAML (song name -> list of aliases) and
// attaches aliases to the matching songs.
func loadAliases(path string, songs map[string]songInfo) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	parsed, err := yamlparser.Parser().Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	byName := make(map[string]string, len(songs))
	for id, info := range songs {
		byName[strings.ToLower(info.name)] = id
	}

	for name, value := range parsed {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("%w: %s: alias entry %q does not match any song", ErrLoad, path, name)
		}
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%w: %s: alias entry %q is not a list", ErrLoad, path, name)
		}
		info := songs[id]
		for _, item := range list {
			alias, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: %s: alias entry %q contains a non-string value", ErrLoad, path, name)
			}
			info.aliases = append(info.aliases, alias)
		}
		sort.Strings(info.aliases)
		songs[id] = info
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated per row with a positional message
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrLoad, path)
	}
	return rows[1:], nil // drop the header row
}
