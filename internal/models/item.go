package models

// Item is one answerable entry of a category, preprocessed for guess
// matching at load time.
type Item struct {
	DisplayName  string
	PrimaryName  string
	CanonicalKey string
	Aliases      map[string]struct{}
}

// HasAlias reports whether a normalized guess matches the item exactly.
func (it *Item) HasAlias(norm string) bool {
	_, ok := it.Aliases[norm]
	return ok
}
