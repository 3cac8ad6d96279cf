package ordering

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prio(p int) *int { return &p }

func nota(key string, number int, priorities ...int) Item {
	item := Item{Key: key, Kind: Primary, Number: number}
	for i, p := range priorities {
		item.Mandatees = append(item.Mandatees, Mandatee{ID: fmt.Sprintf("%s-m%d", key, i), Priority: prio(p)})
	}
	return item
}

func keys(ordered []Ordered) []string {
	out := make([]string, len(ordered))
	for i, o := range ordered {
		out[i] = o.Item.Key
	}
	return out
}

func TestOrderEmpty(t *testing.T) {
	assert.Empty(t, Order(nil))
	assert.Empty(t, Positions(nil))
}

func TestOrderSharedKeyByNumber(t *testing.T) {
	// Two items with key [1] and two with key [2].
	items := []Item{
		nota("d", 7, 2),
		nota("a", 5, 1),
		nota("c", 3, 2),
		nota("b", 2, 1),
	}

	result := Order(items)
	assert.Equal(t, []string{"b", "a", "c", "d"}, keys(result))
	for i, o := range result {
		assert.Equal(t, i+1, o.Sequence)
		assert.Equal(t, i-1, o.Predecessor)
		assert.Equal(t, items[o.Index].Key, o.Item.Key)
	}
}

func TestOrderLexicographicKeys(t *testing.T) {
	items := []Item{
		nota("two", 1, 2),
		nota("one-two", 2, 2, 1),
		nota("one", 3, 1),
	}
	assert.Equal(t, []string{"one", "one-two", "two"}, keys(Order(items)))
}

func TestOrderPrioritiesCompareNumerically(t *testing.T) {
	items := []Item{
		nota("ten", 1, 10),
		nota("two", 2, 2),
		nota("one-ten", 3, 1, 10),
		nota("one-nine", 4, 9, 1),
	}
	assert.Equal(t, []string{"one-nine", "one-ten", "two", "ten"}, keys(Order(items)))
}

func TestOrderPriorityZeroIsDefined(t *testing.T) {
	items := []Item{
		nota("one", 1, 1),
		nota("zero", 9, 0),
		nota("zero-two", 4, 2, 0),
	}

	// a missing priority would group by mandatees and order on number
	assert.Equal(t, []string{"zero", "zero-two", "one"}, keys(Order(items)))
}

func TestOrderFallsBackWhenPriorityMissing(t *testing.T) {
	shared := []Mandatee{{ID: "http://example.org/mandatee/x"}, {ID: "http://example.org/mandatee/y", Priority: prio(1)}}
	items := []Item{
		{Key: "p", Number: 4, Mandatees: []Mandatee{{ID: "http://example.org/mandatee/z", Priority: prio(1)}}},
		{Key: "q", Number: 6, Mandatees: shared},
		{Key: "r", Number: 2, Mandatees: []Mandatee{shared[1], shared[0]}},
		{Key: "s", Number: 5, Mandatees: []Mandatee{{ID: "http://example.org/mandatee/z", Priority: prio(1)}}},
	}

	// groups: {x,y} lowest 2, {z} lowest 4
	assert.Equal(t, []string{"r", "q", "p", "s"}, keys(Order(items)))
}

func TestOrderFallbackTieBreaksOnGroupKey(t *testing.T) {
	items := []Item{
		{Key: "b", Number: 3, Mandatees: []Mandatee{{ID: "http://example.org/mandatee/b"}}},
		{Key: "a", Number: 3, Mandatees: []Mandatee{{ID: "http://example.org/mandatee/a"}}},
	}
	assert.Equal(t, []string{"a", "b"}, keys(Order(items)))
}

func TestOrderSections(t *testing.T) {
	items := []Item{
		{Key: "ann-2", Kind: Announcement, Number: 2},
		{Key: "plain-1", Number: 1},
		nota("m-3", 3, 4),
		{Key: "ann-1", Kind: Announcement, Number: 1, Mandatees: []Mandatee{{ID: "x", Priority: prio(1)}}},
		{Key: "plain-0", Number: 0},
	}

	result := Order(items)
	require.Equal(t, []string{"m-3", "plain-0", "plain-1", "ann-1", "ann-2"}, keys(result))
	assert.Equal(t, -1, result[0].Predecessor)
	assert.Equal(t, 2, result[3].Predecessor, "first announcement follows the last primary item")
	assert.Equal(t, 5, result[4].Sequence)
}

func TestOrderOnlyAnnouncements(t *testing.T) {
	result := Order([]Item{
		{Key: "b", Kind: Announcement, Number: 2},
		{Key: "a", Kind: Announcement, Number: 1},
	})
	assert.Equal(t, []string{"a", "b"}, keys(result))
	assert.Equal(t, -1, result[0].Predecessor)
	assert.Equal(t, 0, result[1].Predecessor)
}

func TestOrderIsIndependentOfInputOrder(t *testing.T) {
	items := []Item{
		nota("a", 1, 3),
		nota("b", 2, 1, 2),
		nota("c", 3, 1),
		nota("d", 4, 1),
		nota("e", 5, 2, 1),
		{Key: "f", Number: 6},
		{Key: "g", Number: 6},
		{Key: "h", Kind: Announcement, Number: 1},
		{Key: "i", Kind: Announcement, Number: 1},
	}
	want := keys(Order(items))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]Item(nil), items...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		result := Order(shuffled)
		require.Equal(t, want, keys(result))
		for j, o := range result {
			assert.Equal(t, j+1, o.Sequence)
			assert.Equal(t, j-1, o.Predecessor)
		}
	}
}

func TestPositions(t *testing.T) {
	items := []Item{
		{Key: "ann-b", Kind: Announcement, Number: 12},
		{Key: "nota-b", Number: 9},
		{Key: "ann-a", Kind: Announcement, Number: 11},
		{Key: "nota-a", Number: 3},
	}

	result := Positions(items)
	require.Equal(t, []string{"nota-a", "nota-b", "ann-a", "ann-b"}, keys(result))
	assert.Equal(t, []int{1, 2, 1, 2}, []int{result[0].Sequence, result[1].Sequence, result[2].Sequence, result[3].Sequence})
	assert.Equal(t, []int{-1, 0, 1, 2}, []int{result[0].Predecessor, result[1].Predecessor, result[2].Predecessor, result[3].Predecessor})
	assert.Equal(t, 3, result[0].Index)
}

func TestPositionsAnnouncementsWithoutPrimaries(t *testing.T) {
	result := Positions([]Item{{Key: "a", Kind: Announcement, Number: 1}})
	require.Len(t, result, 1)
	assert.Equal(t, -1, result[0].Predecessor)
	assert.Equal(t, 1, result[0].Sequence)
}
