package sync

import (
	"github.com/sdejongh/contentsync/pkg/models"
)

// Match partitions the records of store A (left) and store B (right) by
// canonical identity.
//
// Each left record can be consumed by at most one right record. When a
// store holds several records with the same identity, the first one takes
// part in matching and the others end up left-only or right-only.
func Match(left, right []models.ContentRecord) models.Partition {
	var part models.Partition

	index := make(map[string]int, len(left))
	consumed := make([]bool, len(left))
	for i, rec := range left {
		id := rec.Identity()
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = i
	}

	for _, rec := range right {
		id := rec.Identity()
		i, ok := index[id]
		if !ok {
			part.RightOnly = append(part.RightOnly, rec)
			continue
		}
		delete(index, id)
		consumed[i] = true
		part.Matched = append(part.Matched, models.Pair{A: left[i], B: rec})
	}

	for i, rec := range left {
		if !consumed[i] {
			part.LeftOnly = append(part.LeftOnly, rec)
		}
	}
	return part
}
