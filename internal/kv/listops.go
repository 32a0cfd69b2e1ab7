package kv

// resolveRange converts Redis-style inclusive [start, stop] indices into a
// half-open [lo, hi) slice window over a list of length n.
func resolveRange(n int, start, stop int64) (lo, hi int) {
	size := int64(n)
	if start < 0 {
		start += size
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += size
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0
	}
	return int(start), int(stop) + 1
}

func rangeList(items []string, start, stop int64) []string {
	lo, hi := resolveRange(len(items), start, stop)
	out := make([]string, hi-lo)
	copy(out, items[lo:hi])
	return out
}

func trimList(items []string, start, stop int64) []string {
	lo, hi := resolveRange(len(items), start, stop)
	if lo == hi {
		return nil
	}
	out := make([]string, hi-lo)
	copy(out, items[lo:hi])
	return out
}

func pushFront(items []string, value string) []string {
	out := make([]string, 0, len(items)+1)
	out = append(out, value)
	return append(out, items...)
}
