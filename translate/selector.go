package translate

import (
	"strings"

	"github.com/minios-linux/potranslate/pofile"
)

// Item is an entry selected for translation.
type Item struct {
	// Index is the entry's position in pofile.File.Entries.
	Index  int
	Source string
}

// Select returns the entries that need translation in catalog order and
// fills the classification counters of stats. The first matching rule
// wins: a non-obsolete entry with a translation counts as translated, a
// fuzzy entry as fuzzy, an entry with a blank source is ignored, and
// everything else is selected.
func Select(f *pofile.File, stats *Stats) []Item {
	var items []Item
	stats.Total = len(f.Entries)
	for i, e := range f.Entries {
		switch {
		case e.HasTarget() && !e.Obsolete:
			stats.Translated++
		case e.IsFuzzy():
			stats.Fuzzy++
		case strings.TrimSpace(e.MsgID) == "":
		default:
			items = append(items, Item{Index: i, Source: e.MsgID})
		}
	}
	stats.Untranslated = len(items)
	return items
}
