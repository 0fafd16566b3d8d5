package mkv

import (
	"math"
	"time"
)

// DefaultBitrateWindow is how much cluster time is collected before the
// bitrate estimate is refreshed.
const DefaultBitrateWindow = 30 * time.Second

// cluster accounts the blocks of one cluster for the bitrate estimate.
type cluster struct {
	blockSize uint64
	blockID   []byte // nil until the first block locks the run
	start     float64
	timespan  float64 // seconds until the next cluster, 0 while unknown
}

type window struct {
	span     time.Duration
	clusters []*cluster
}

func (w *window) push() *cluster {
	c := &cluster{}
	w.clusters = append(w.clusters, c)
	return c
}

func (w *window) last() *cluster {
	if len(w.clusters) == 0 {
		return nil
	}
	return w.clusters[len(w.clusters)-1]
}

// setStart records the start time of the newest cluster and closes the
// timespan of the one before it.
func (w *window) setStart(seconds float64) {
	n := len(w.clusters)
	if n == 0 {
		return
	}
	w.clusters[n-1].start = seconds
	if n > 1 {
		prev := w.clusters[n-2]
		prev.timespan = seconds - prev.start
	}
}

func (w *window) timespan() float64 {
	var span float64
	for _, c := range w.clusters {
		span += c.timespan
	}
	return span
}

// bitrate returns the estimate in kbps once the window covers its span.
// Only clusters with a known timespan contribute bytes.
func (w *window) bitrate() (int, bool) {
	span := w.timespan()
	if len(w.clusters) == 0 || span < w.span.Seconds() || span <= 0 {
		return 0, false
	}
	var size uint64
	for _, c := range w.clusters {
		if c.timespan > 0 {
			size += c.blockSize
		}
	}
	return int(math.Ceil(float64(size) * 8 / span / 1000)), true
}

// collapse keeps only the newest cluster.
func (w *window) collapse() {
	if n := len(w.clusters); n > 1 {
		w.clusters = []*cluster{w.clusters[n-1]}
	}
}

func (w *window) clear() {
	w.clusters = nil
}
