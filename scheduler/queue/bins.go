package queue

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/twitter/scd/scheduler/domain"
)

// BinRanges partitions int64 values into bins. With bounds b0 < b1 < ... < bn-1,
// bin i holds values in [b(i), b(i+1)) and the last bin holds [b(n-1), +inf).
// Values below b0 fall into bin 0. No bounds means a single bin holding everything.
type BinRanges struct {
	Bounds []int64
}

func NewBinRanges(bounds ...int64) (BinRanges, error) {
	r := BinRanges{Bounds: append([]int64(nil), bounds...)}
	return r, r.Validate()
}

// ParseBinRanges reads a comma separated list of bounds, ex: "0,4,8,16".
func ParseBinRanges(s string) (BinRanges, error) {
	var bounds []int64
	for _, e := range domain.SplitList(s) {
		v, err := strconv.ParseInt(e, 10, 64)
		if err != nil {
			return BinRanges{}, domain.BadParameterf("invalid bin bound %q", e)
		}
		bounds = append(bounds, v)
	}
	return NewBinRanges(bounds...)
}

func (r BinRanges) Validate() error {
	for i := 1; i < len(r.Bounds); i++ {
		if r.Bounds[i] <= r.Bounds[i-1] {
			return domain.BadParameterf("bin bounds must be strictly increasing: %v", r.Bounds)
		}
	}
	return nil
}

// Len is the number of bins, including the overflow bin.
func (r BinRanges) Len() int {
	if len(r.Bounds) == 0 {
		return 1
	}
	return len(r.Bounds)
}

// Index returns the bin holding v.
func (r BinRanges) Index(v int64) int {
	// first bound strictly greater than v, the bin is the one before it
	i := sort.Search(len(r.Bounds), func(i int) bool { return r.Bounds[i] > v })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Range returns the [low, high) interval of bin i. The overflow bin reports
// math.MaxInt64 as its high end. Bin 0 also takes values below its low bound.
func (r BinRanges) Range(i int) (low, high int64) {
	if len(r.Bounds) == 0 {
		return math.MinInt64, math.MaxInt64
	}
	low = r.Bounds[i]
	high = math.MaxInt64
	if i+1 < len(r.Bounds) {
		high = r.Bounds[i+1]
	}
	return low, high
}

func (r BinRanges) String() string {
	parts := make([]string, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		low, high := r.Range(i)
		if high == math.MaxInt64 {
			parts = append(parts, fmt.Sprintf("[%d,inf)", low))
		} else {
			parts = append(parts, fmt.Sprintf("[%d,%d)", low, high))
		}
	}
	return strings.Join(parts, " ")
}

// bin holds references to sessions that also live in the queue's master list.
type bin struct {
	low, high int64
	members   map[domain.SessionID]*domain.Session
}

func makeBins(r BinRanges) []*bin {
	bins := make([]*bin, r.Len())
	for i := range bins {
		low, high := r.Range(i)
		bins[i] = &bin{low: low, high: high, members: map[domain.SessionID]*domain.Session{}}
	}
	return bins
}

// BinInfo describes one bin for listings.
type BinInfo struct {
	Low   int64 `json:"low"`
	High  int64 `json:"high"`
	Count int   `json:"count"`
}

func binInfos(bins []*bin) []BinInfo {
	out := make([]BinInfo, len(bins))
	for i, b := range bins {
		out[i] = BinInfo{Low: b.low, High: b.high, Count: len(b.members)}
	}
	return out
}
