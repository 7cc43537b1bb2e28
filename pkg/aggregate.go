package dusc

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Rect is the rectangle descriptor the ROI layer hands over: integer
// position and size in whichever space the rectangle lives in.
type Rect struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// RealWindow is a rectangle over scan positions, closed on all four sides.
type RealWindow struct {
	RowMin, RowMax int
	ColMin, ColMax int
}

// DiffWindow is a rectangle over detector pixels. All four bounds are
// exclusive: a pixel is selected when row > Left, row < Right, col > Bottom
// and col < Top.
type DiffWindow struct {
	Left, Right int
	Bottom, Top int
}

// RealWindow selects rows Row..Row+Height and cols Col..Col+Width, both ends
// included.
func (r Rect) RealWindow() RealWindow {
	return RealWindow{
		RowMin: r.Row,
		RowMax: r.Row + r.Height,
		ColMin: r.Col,
		ColMax: r.Col + r.Width,
	}
}

// DiffWindow shifts the lower bounds by -1 and leaves the upper bounds at
// Row+Height / Col+Width, to be tested strictly. The asymmetric offsets are
// load-bearing: existing exports depend on this exact selection, so keep it
// bit-for-bit even though a rect touching the frame origin also lets the
// padding slots at (0, 0) pass the test.
func (r Rect) DiffWindow() DiffWindow {
	return DiffWindow{
		Left:   r.Row - 1,
		Right:  r.Row + r.Height,
		Bottom: r.Col - 1,
		Top:    r.Col + r.Width,
	}
}

// Aggregator reduces immutable event tables over a window. Both operations
// are pure: identical inputs give bit-identical images. Implementations are
// interchangeable and selected at construction.
type Aggregator interface {
	// Diffraction sums every event inside a real-space window into a dense
	// detector image of length Frame.Size().
	Diffraction(t *Tables, w RealWindow) ([]uint32, error)
	// RealSpace counts, for every scan position, the events inside a
	// detector-space window, giving a dense image of length Scan.Size().
	RealSpace(t *Tables, w DiffWindow) ([]uint32, error)
}

func NewAggregator(parallel bool, workers int) Aggregator {
	if parallel {
		return &ParallelAggregator{Workers: workers}
	}
	return &SerialAggregator{}
}

// checkTables fails fast on tables whose length disagrees with their shapes.
// Aggregating such tables would silently mis-index memory.
func checkTables(t *Tables) error {
	want := t.NumRows() * t.MaxEvents
	if len(t.Events) != want {
		return &ErrDimensionMismatch{Table: "events", Expected: want, Actual: len(t.Events)}
	}
	if len(t.Rows) != want {
		return &ErrDimensionMismatch{Table: "rows", Expected: want, Actual: len(t.Rows)}
	}
	if len(t.Cols) != want {
		return &ErrDimensionMismatch{Table: "cols", Expected: want, Actual: len(t.Cols)}
	}
	return nil
}

// clampReal pulls a real-space window back inside the scan extent. The ROI
// layer enforces max bounds on its side already, so this only triggers on
// misbehaving callers; it is logged, not failed.
func clampReal(w RealWindow, scan Shape) RealWindow {
	c := w
	if c.RowMin < 0 {
		c.RowMin = 0
	}
	if c.RowMax > scan.Rows-1 {
		c.RowMax = scan.Rows - 1
	}
	if c.ColMin < 0 {
		c.ColMin = 0
	}
	if c.ColMax > scan.Cols-1 {
		c.ColMax = scan.Cols - 1
	}
	if c != w && configuration.Verbosity > 1 {
		err := &ErrWindowOutOfRange{Window: w, Scan: scan}
		logger.Info(err.Error(), "aggregate")
	}
	return c
}

// sumDiffractionSpan adds the events of one scan row segment, all sub-frames
// and slots included, into dp. Slot value 0 is the padding sentinel and is
// skipped; a genuine hit at flat index 0 is indistinguishable from padding.
func sumDiffractionSpan(t *Tables, scanRow, colMin, colMax int, dp []uint32) {
	span := t.SubFrames * t.MaxEvents
	for c := colMin; c <= colMax; c++ {
		base := (scanRow*t.Scan.Cols + c) * span
		for _, v := range t.Events[base : base+span] {
			if v > 0 {
				dp[v]++
			}
		}
	}
}

// countRealSpace counts the events of one scan position falling strictly
// inside the detector window. Padding maps to (0, 0) and is excluded by the
// same predicate whenever the lower bounds are >= 0.
func countRealSpace(t *Tables, pos int, w DiffWindow) uint32 {
	span := t.SubFrames * t.MaxEvents
	base := pos * span
	var n uint32
	for i := base; i < base+span; i++ {
		row := int(t.Rows[i])
		col := int(t.Cols[i])
		if row > w.Left && row < w.Right && col > w.Bottom && col < w.Top {
			n++
		}
	}
	return n
}

// SerialAggregator is the reference implementation: straight loops, no
// concurrency.
type SerialAggregator struct{}

func (SerialAggregator) Diffraction(t *Tables, w RealWindow) ([]uint32, error) {
	if err := checkTables(t); err != nil {
		return nil, err
	}
	w = clampReal(w, t.Scan)
	dp := make([]uint32, t.Frame.Size())
	for r := w.RowMin; r <= w.RowMax; r++ {
		sumDiffractionSpan(t, r, w.ColMin, w.ColMax, dp)
	}
	return dp, nil
}

func (SerialAggregator) RealSpace(t *Tables, w DiffWindow) ([]uint32, error) {
	if err := checkTables(t); err != nil {
		return nil, err
	}
	rs := make([]uint32, t.Scan.Size())
	for pos := range rs {
		rs[pos] = countRealSpace(t, pos, w)
	}
	return rs, nil
}

// ParallelAggregator splits the outer scan dimension across workers. Zero or
// negative Workers means num_workers from the configuration, falling back to
// the CPU count.
type ParallelAggregator struct {
	Workers int
}

func (a *ParallelAggregator) workers() int {
	if a.Workers > 0 {
		return a.Workers
	}
	if configuration.NumWorkers > 0 {
		return configuration.NumWorkers
	}
	return runtime.NumCPU()
}

// Diffraction uses a private detector image per worker, merged element-wise
// in band order afterwards: many scan positions write the same detector
// pixel, and shared unsynchronized increments would drop counts and make the
// result depend on scheduling.
func (a *ParallelAggregator) Diffraction(t *Tables, w RealWindow) ([]uint32, error) {
	if err := checkTables(t); err != nil {
		return nil, err
	}
	w = clampReal(w, t.Scan)
	nBand := w.RowMax - w.RowMin + 1
	if nBand < 1 {
		return make([]uint32, t.Frame.Size()), nil
	}

	workers := a.workers()
	if workers > nBand {
		workers = nBand
	}

	accs := make([][]uint32, workers)
	per, rem := nBand/workers, nBand%workers

	var g errgroup.Group
	next := w.RowMin
	for wk := 0; wk < workers; wk++ {
		n := per
		if wk < rem {
			n++
		}
		lo := next
		hi := next + n - 1
		next += n
		wk := wk
		g.Go(func() error {
			dp := make([]uint32, t.Frame.Size())
			for r := lo; r <= hi; r++ {
				sumDiffractionSpan(t, r, w.ColMin, w.ColMax, dp)
			}
			accs[wk] = dp
			return nil
		})
	}
	g.Wait()

	out := accs[0]
	for _, acc := range accs[1:] {
		for i, v := range acc {
			out[i] += v
		}
	}
	return out, nil
}

// RealSpace needs no merge: every output cell belongs to exactly one scan
// position, so workers write disjoint slices of the image.
func (a *ParallelAggregator) RealSpace(t *Tables, w DiffWindow) ([]uint32, error) {
	if err := checkTables(t); err != nil {
		return nil, err
	}
	rs := make([]uint32, t.Scan.Size())
	n := len(rs)
	if n < 1 {
		return rs, nil
	}
	workers := a.workers()
	if workers > n {
		workers = n
	}
	per, rem := n/workers, n%workers

	var g errgroup.Group
	next := 0
	for wk := 0; wk < workers; wk++ {
		cnt := per
		if wk < rem {
			cnt++
		}
		lo := next
		hi := next + cnt
		next += cnt
		g.Go(func() error {
			for pos := lo; pos < hi; pos++ {
				rs[pos] = countRealSpace(t, pos, w)
			}
			return nil
		})
	}
	g.Wait()
	return rs, nil
}
