package util

import (
	"slices"
	"sort"

	"github.com/xtgo/set"
)

// IDSet is a sorted, duplicate free slice of ids.
// Set algebra is done in place by xtgo/set, so operations return new slices
type IDSet []uint64

func (s IDSet) Len() int           { return len(s) }
func (s IDSet) Less(i, j int) bool { return s[i] < s[j] }
func (s IDSet) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func NewIDSet(ids ...uint64) IDSet {
	data := IDSet(slices.Clone(ids))
	sort.Sort(data)
	return data[:set.Uniq(data)]
}

func (s IDSet) Diff(other IDSet) IDSet {
	data := append(slices.Clone(s), other...)
	return data[:set.Diff(data, len(s))]
}

func (s IDSet) Contains(id uint64) bool {
	_, found := slices.BinarySearch(s, id)
	return found
}
