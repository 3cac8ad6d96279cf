// Package ordering computes the publication order of newsitems and the
// positions of public agenda items.
//
// Primary items with mandatees come first, grouped by the priorities of
// their mandatees when every mandatee has one, otherwise by the set of
// mandatees. Primary items without mandatees follow, then announcements.
// Inside every group items keep their agenda number order.
package ordering

import (
	"sort"
	"strings"
)

// Kind distinguishes regular agenda items from announcements.
type Kind int

const (
	Primary Kind = iota
	Announcement
)

func (k Kind) String() string {
	if k == Announcement {
		return "announcement"
	}
	return "primary"
}

// Mandatee is a minister responsible for an item. A nil Priority means the
// rank is unknown.
type Mandatee struct {
	ID       string
	Priority *int
}

// Item is the input of the ordering. Key identifies the item and breaks ties
// between equal numbers.
type Item struct {
	Key       string
	Kind      Kind
	Number    int
	Mandatees []Mandatee
}

// Ordered is one item in final order.
type Ordered struct {
	Item Item
	// Index is the position of the item in the input slice.
	Index int
	// Sequence is 1-based.
	Sequence int
	// Predecessor is the result index of the previous item, -1 for none.
	Predecessor int
}

// Order returns items in publication order with sequence numbers 1..N over
// the whole result. The result only depends on the set of items, not on
// their input order.
func Order(items []Item) []Ordered {
	var withMandatees, withoutMandatees, announcements []int
	for i, item := range items {
		switch {
		case item.Kind == Announcement:
			announcements = append(announcements, i)
		case len(item.Mandatees) > 0:
			withMandatees = append(withMandatees, i)
		default:
			withoutMandatees = append(withoutMandatees, i)
		}
	}

	var primaries []int
	if prioritiesComplete(items, withMandatees) {
		primaries = byPriority(items, withMandatees)
	} else {
		primaries = byMandateeGroup(items, withMandatees)
	}
	primaries = append(primaries, sortByNumber(items, withoutMandatees)...)
	announcements = sortByNumber(items, announcements)

	result := make([]Ordered, 0, len(items))
	for _, idx := range primaries {
		result = append(result, Ordered{Item: items[idx], Index: idx})
	}
	for _, idx := range announcements {
		result = append(result, Ordered{Item: items[idx], Index: idx})
	}
	for i := range result {
		result[i].Sequence = i + 1
		result[i].Predecessor = i - 1
	}
	return result
}

// Positions orders agenda items the way the public agenda lists them:
// primary items by number, renumbered from 1, then announcements by number,
// again renumbered from 1. The first announcement follows the last primary
// item.
func Positions(items []Item) []Ordered {
	var primaries, announcements []int
	for i, item := range items {
		if item.Kind == Announcement {
			announcements = append(announcements, i)
		} else {
			primaries = append(primaries, i)
		}
	}

	result := make([]Ordered, 0, len(items))
	for _, part := range [][]int{sortByNumber(items, primaries), sortByNumber(items, announcements)} {
		for n, idx := range part {
			result = append(result, Ordered{
				Item:        items[idx],
				Index:       idx,
				Sequence:    n + 1,
				Predecessor: len(result) - 1,
			})
		}
	}
	return result
}

func prioritiesComplete(items []Item, indices []int) bool {
	for _, idx := range indices {
		for _, m := range items[idx].Mandatees {
			if m.Priority == nil {
				return false
			}
		}
	}
	return true
}

// byPriority groups items on their ascending list of mandatee priorities and
// emits the groups in lexicographic order of those lists.
func byPriority(items []Item, indices []int) []int {
	root := newNode()
	for _, idx := range indices {
		key := make([]int, 0, len(items[idx].Mandatees))
		for _, m := range items[idx].Mandatees {
			key = append(key, *m.Priority)
		}
		sort.Ints(key)
		root.insert(key, idx)
	}

	var ordered []int
	root.walk(func(members []int) {
		ordered = append(ordered, sortByNumber(items, members)...)
	})
	return ordered
}

// byMandateeGroup groups items on their set of mandatees and orders the
// groups by the lowest agenda number they contain.
func byMandateeGroup(items []Item, indices []int) []int {
	type group struct {
		key     string
		lowest  int
		members []int
	}
	groups := map[string]*group{}
	for _, idx := range indices {
		key := mandateeKey(items[idx].Mandatees)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, lowest: items[idx].Number}
			groups[key] = g
		}
		if items[idx].Number < g.lowest {
			g.lowest = items[idx].Number
		}
		g.members = append(g.members, idx)
	}

	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].lowest != sorted[j].lowest {
			return sorted[i].lowest < sorted[j].lowest
		}
		return sorted[i].key < sorted[j].key
	})

	var ordered []int
	for _, g := range sorted {
		ordered = append(ordered, sortByNumber(items, g.members)...)
	}
	return ordered
}

func mandateeKey(mandatees []Mandatee) string {
	ids := make([]string, 0, len(mandatees))
	seen := map[string]bool{}
	for _, m := range mandatees {
		if !seen[m.ID] {
			seen[m.ID] = true
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, " ")
}

func sortByNumber(items []Item, indices []int) []int {
	sorted := append([]int(nil), indices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := items[sorted[i]], items[sorted[j]]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Key < b.Key
	})
	return sorted
}
