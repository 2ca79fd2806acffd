package messaging

import (
	"slices"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Ring is an immutable consistent-hash ring over weighted queues. A queue
// with weight w owns w points on the ring; a key is routed to the owner of
// the first point at or after the key's hash. Adding or removing a queue
// only moves the keys that fall on that queue's points.
type Ring struct {
	points []ringPoint
}

type ringPoint struct {
	hash  uint64
	queue string
}

// NewRing builds a ring from queue weights. Non-positive weights are skipped.
func NewRing(weights map[string]int) *Ring {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	points := make([]ringPoint, 0, total)
	for queue, w := range weights {
		for i := range max(w, 0) {
			points = append(points, ringPoint{
				hash:  xxhash.Sum64String(queue + "#" + strconv.Itoa(i)),
				queue: queue,
			})
		}
	}

	// Ties are broken by queue name so every process builds the same ring.
	slices.SortFunc(points, func(a, b ringPoint) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		case a.queue < b.queue:
			return -1
		case a.queue > b.queue:
			return 1
		default:
			return 0
		}
	})

	return &Ring{points: points}
}

// Locate returns the queue that owns key.
func (r *Ring) Locate(key string) (string, bool) {
	if r == nil || len(r.points) == 0 {
		return "", false
	}
	h := xxhash.Sum64String(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].queue, true
}

// Len returns the number of points on the ring.
func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	return len(r.points)
}
