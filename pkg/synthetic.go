package dusc

import "math/rand"

// NewSyntheticDataset builds a deterministic ragged dataset for benchmarks
// and demos: sequence lengths uniform in [0, 2*meanEvents], indices uniform
// over the frame. The same seed always gives the same dataset.
func NewSyntheticDataset(scan, frame Shape, subFrames, meanEvents int, seed int64) *RaggedDataset {
	rng := rand.New(rand.NewSource(seed))
	events := make([][]uint32, scan.Size()*subFrames)
	size := frame.Size()
	for i := range events {
		count := 0
		if meanEvents > 0 {
			count = rng.Intn(2*meanEvents + 1)
		}
		list := make([]uint32, count)
		for j := range list {
			list[j] = uint32(rng.Intn(size))
		}
		events[i] = list
	}
	return &RaggedDataset{Scan: scan, Detector: frame, Subs: subFrames, Events: events}
}
