package breaker

import "time"

const windowBuckets = 10

type bucket struct {
	epoch     int64
	successes uint32
	failures  uint32
}

// window counts outcomes over a trailing period split into fixed buckets.
// A bucket is recycled the first time it is touched in a later epoch.
type window struct {
	width   time.Duration
	buckets []bucket
}

func newWindow(period time.Duration, n int) *window {
	width := period / time.Duration(n)
	if width <= 0 {
		width = 1
	}

	return &window{
		width:   width,
		buckets: make([]bucket, n),
	}
}

func (w *window) epoch(now time.Time) int64 {
	return now.UnixNano() / int64(w.width)
}

func (w *window) record(now time.Time, success bool) {
	e := w.epoch(now)
	bk := &w.buckets[int(e%int64(len(w.buckets)))]
	if bk.epoch != e {
		*bk = bucket{epoch: e}
	}

	if success {
		bk.successes++
	} else {
		bk.failures++
	}
}

func (w *window) totals(now time.Time) (requests uint32, failures uint32) {
	e := w.epoch(now)
	oldest := e - int64(len(w.buckets)) + 1

	for _, bk := range w.buckets {
		if bk.epoch < oldest || bk.epoch > e {
			continue
		}
		requests += bk.successes + bk.failures
		failures += bk.failures
	}

	return requests, failures
}

func (w *window) reset() {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}
