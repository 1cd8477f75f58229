package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/avbelov/squadduel/internal/models"
)

// Normalize canonicalizes free text for guess comparison: trims, lowercases
// and folds the Cyrillic yo into ye so both spellings match.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "ё", "е")
}

// League maps a category name to its answerable items.
type League map[string][]*models.Item

// Catalog holds every loaded league, immutable after Load.
type Catalog struct {
	leagues map[string]League
}

// Load reads one CSV file per league. Each row is
// display name, category, alias... and every field past the category is an
// extra accepted spelling. The whole call fails on the first malformed file.
func Load(files map[string]string) (*Catalog, error) {
	c := &Catalog{leagues: make(map[string]League, len(files))}
	for league, path := range files {
		lg, err := loadLeague(path)
		if err != nil {
			return nil, fmt.Errorf("load league %q: %w", league, err)
		}
		c.leagues[league] = lg
	}
	return c, nil
}

func loadLeague(path string) (League, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	lg := make(League)
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: want at least name and category, got %d fields", i+1, len(row))
		}
		display := strings.TrimSpace(row[0])
		category := strings.TrimSpace(row[1])
		if display == "" || category == "" {
			return nil, fmt.Errorf("row %d: empty name or category", i+1)
		}
		item := buildItem(display, row[2:])
		lg[category] = append(lg[category], item)
	}
	return lg, nil
}

// buildItem derives the matchable spellings of one entry. The primary name is
// the last word of the display name, and the full name plus every explicit
// alias are accepted as well.
func buildItem(display string, aliases []string) *models.Item {
	words := strings.Fields(display)
	primary := words[len(words)-1]

	set := map[string]struct{}{
		Normalize(primary): {},
		Normalize(display): {},
	}
	for _, a := range aliases {
		if n := Normalize(a); n != "" {
			set[n] = struct{}{}
		}
	}
	return &models.Item{
		DisplayName:  display,
		PrimaryName:  primary,
		CanonicalKey: Normalize(display),
		Aliases:      set,
	}
}

// Leagues returns the loaded league names in sorted order.
func (c *Catalog) Leagues() []string {
	names := make([]string, 0, len(c.leagues))
	for n := range c.leagues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// League returns the items of one league, or false when it is unknown.
func (c *Catalog) League(name string) (League, bool) {
	lg, ok := c.leagues[name]
	return lg, ok
}

// Categories returns the sorted category names of one league.
func (c *Catalog) Categories(league string) []string {
	lg, ok := c.leagues[league]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lg))
	for n := range lg {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Items returns the items of one category within a league.
func (c *Catalog) Items(league, category string) []*models.Item {
	lg, ok := c.leagues[league]
	if !ok {
		return nil
	}
	return lg[category]
}
