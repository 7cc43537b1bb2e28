package dusc

import (
	"errors"
	"math/rand"
	"testing"
)

func buildFrom(t *testing.T, ds *RaggedDataset) *Tables {
	t.Helper()
	tbl, err := BuildTables(ds, nil)
	if err != nil {
		t.Fatalf("BuildTables: %v", err)
	}
	return tbl
}

func imagesEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func imageSum(img []uint32) uint64 {
	var total uint64
	for _, v := range img {
		total += uint64(v)
	}
	return total
}

func TestDiffractionReconstruction(t *testing.T) {
	tbl := buildFrom(t, &RaggedDataset{
		Scan:     Shape{Rows: 2, Cols: 2},
		Detector: Shape{Rows: 4, Cols: 4},
		Subs:     1,
		Events:   [][]uint32{{5}, {10}, {}, {}},
	})

	full := Rect{Row: 0, Col: 0, Height: 1, Width: 1}.RealWindow()
	dp, err := (SerialAggregator{}).Diffraction(tbl, full)
	if err != nil {
		t.Fatalf("Diffraction: %v", err)
	}
	if len(dp) != 16 {
		t.Fatalf("image length %d, want 16", len(dp))
	}
	for i, v := range dp {
		switch i {
		case 5, 10:
			if v != 1 {
				t.Fatalf("dp[%d] = %d, want 1", i, v)
			}
		default:
			if v != 0 {
				t.Fatalf("dp[%d] = %d, want 0", i, v)
			}
		}
	}
}

func TestRealSpaceStrictBounds(t *testing.T) {
	// One electron at row 5, col 5 of a 576-wide frame.
	tbl := buildFrom(t, &RaggedDataset{
		Scan:     Shape{Rows: 1, Cols: 1},
		Detector: Shape{Rows: 576, Cols: 576},
		Subs:     1,
		Events:   [][]uint32{{5*576 + 5}},
	})

	rs, err := (SerialAggregator{}).RealSpace(tbl, DiffWindow{Left: 4, Right: 6, Bottom: 4, Top: 6})
	if err != nil {
		t.Fatalf("RealSpace: %v", err)
	}
	if rs[0] != 1 {
		t.Fatalf("window (4,6)x(4,6) counted %d, want 1", rs[0])
	}

	// All bounds are strict: a lower bound equal to the coordinate excludes.
	rs, err = (SerialAggregator{}).RealSpace(tbl, DiffWindow{Left: 5, Right: 6, Bottom: 5, Top: 6})
	if err != nil {
		t.Fatalf("RealSpace: %v", err)
	}
	if rs[0] != 0 {
		t.Fatalf("window (5,6)x(5,6) counted %d, want 0", rs[0])
	}
}

func TestRectOffsets(t *testing.T) {
	r := Rect{Row: 5, Col: 5, Height: 1, Width: 1}
	if got := r.DiffWindow(); got != (DiffWindow{Left: 4, Right: 6, Bottom: 4, Top: 6}) {
		t.Fatalf("DiffWindow = %+v", got)
	}
	if got := r.RealWindow(); got != (RealWindow{RowMin: 5, RowMax: 6, ColMin: 5, ColMax: 6}) {
		t.Fatalf("RealWindow = %+v", got)
	}
}

// uniformDataset has the same sequence length everywhere and no index-0
// hits, the regime where padding and the zero sentinel cannot skew totals.
func uniformDataset(scan, frame Shape, subs, length int, seed int64) *RaggedDataset {
	rng := rand.New(rand.NewSource(seed))
	events := make([][]uint32, scan.Size()*subs)
	for i := range events {
		list := make([]uint32, length)
		for j := range list {
			list[j] = uint32(1 + rng.Intn(frame.Size()-1))
		}
		events[i] = list
	}
	return &RaggedDataset{Scan: scan, Detector: frame, Subs: subs, Events: events}
}

func TestTotalCountsInvariant(t *testing.T) {
	scan := Shape{Rows: 8, Cols: 8}
	frame := Shape{Rows: 16, Cols: 16}
	tbl := buildFrom(t, uniformDataset(scan, frame, 2, 7, 99))
	wantTotal := uint64(8 * 8 * 2 * 7)

	fullReal := Rect{Row: 0, Col: 0, Height: scan.Rows - 1, Width: scan.Cols - 1}.RealWindow()
	fullDiff := Rect{Row: 0, Col: 0, Height: frame.Rows, Width: frame.Cols}.DiffWindow()

	for _, agg := range []Aggregator{&SerialAggregator{}, &ParallelAggregator{Workers: 4}} {
		dp, err := agg.Diffraction(tbl, fullReal)
		if err != nil {
			t.Fatalf("Diffraction: %v", err)
		}
		rs, err := agg.RealSpace(tbl, fullDiff)
		if err != nil {
			t.Fatalf("RealSpace: %v", err)
		}
		if got := imageSum(dp); got != wantTotal {
			t.Fatalf("diffraction total = %d, want %d", got, wantTotal)
		}
		if got := imageSum(rs); got != wantTotal {
			t.Fatalf("real-space total = %d, want %d", got, wantTotal)
		}
	}
}

func TestPurityAndParallelEquivalence(t *testing.T) {
	ds := NewSyntheticDataset(Shape{Rows: 16, Cols: 12}, Shape{Rows: 24, Cols: 24}, 2, 9, 42)
	tbl := buildFrom(t, ds)

	rects := []Rect{
		{Row: 0, Col: 0, Height: 15, Width: 11},
		{Row: 3, Col: 2, Height: 4, Width: 5},
		{Row: 10, Col: 10, Height: 0, Width: 0},
	}
	serial := SerialAggregator{}
	for _, r := range rects {
		dp1, err := serial.Diffraction(tbl, r.RealWindow())
		if err != nil {
			t.Fatalf("Diffraction: %v", err)
		}
		dp2, _ := serial.Diffraction(tbl, r.RealWindow())
		if !imagesEqual(dp1, dp2) {
			t.Fatalf("repeated Diffraction differs for %+v", r)
		}
		rs1, err := serial.RealSpace(tbl, r.DiffWindow())
		if err != nil {
			t.Fatalf("RealSpace: %v", err)
		}
		rs2, _ := serial.RealSpace(tbl, r.DiffWindow())
		if !imagesEqual(rs1, rs2) {
			t.Fatalf("repeated RealSpace differs for %+v", r)
		}

		for _, workers := range []int{1, 3, 8} {
			par := &ParallelAggregator{Workers: workers}
			dp, err := par.Diffraction(tbl, r.RealWindow())
			if err != nil {
				t.Fatalf("parallel Diffraction: %v", err)
			}
			if !imagesEqual(dp, dp1) {
				t.Fatalf("parallel Diffraction (%d workers) differs for %+v", workers, r)
			}
			rs, err := par.RealSpace(tbl, r.DiffWindow())
			if err != nil {
				t.Fatalf("parallel RealSpace: %v", err)
			}
			if !imagesEqual(rs, rs1) {
				t.Fatalf("parallel RealSpace (%d workers) differs for %+v", workers, r)
			}
		}
	}
}

func TestRealWindowClamped(t *testing.T) {
	ds := NewSyntheticDataset(Shape{Rows: 6, Cols: 6}, Shape{Rows: 8, Cols: 8}, 1, 5, 7)
	tbl := buildFrom(t, ds)

	oversized := RealWindow{RowMin: -10, RowMax: 1000, ColMin: -10, ColMax: 1000}
	full := RealWindow{RowMin: 0, RowMax: 5, ColMin: 0, ColMax: 5}

	for _, agg := range []Aggregator{&SerialAggregator{}, &ParallelAggregator{Workers: 3}} {
		got, err := agg.Diffraction(tbl, oversized)
		if err != nil {
			t.Fatalf("Diffraction: %v", err)
		}
		want, err := agg.Diffraction(tbl, full)
		if err != nil {
			t.Fatalf("Diffraction: %v", err)
		}
		if !imagesEqual(got, want) {
			t.Fatal("clamped window differs from full-extent window")
		}
	}
}

func TestDimensionMismatchFailsFast(t *testing.T) {
	tbl := buildFrom(t, &RaggedDataset{
		Scan:     Shape{Rows: 2, Cols: 2},
		Detector: Shape{Rows: 4, Cols: 4},
		Subs:     1,
		Events:   [][]uint32{{1}, {2}, {3}, {4}},
	})
	tbl.Events = tbl.Events[:len(tbl.Events)-1]

	var dimErr *ErrDimensionMismatch
	if _, err := (SerialAggregator{}).Diffraction(tbl, RealWindow{RowMax: 1, ColMax: 1}); !errors.As(err, &dimErr) {
		t.Fatalf("Diffraction error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := (&ParallelAggregator{Workers: 2}).RealSpace(tbl, DiffWindow{Left: -1, Right: 4, Bottom: -1, Top: 4}); !errors.As(err, &dimErr) {
		t.Fatalf("RealSpace error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmptyDataset(t *testing.T) {
	scan := Shape{Rows: 3, Cols: 3}
	frame := Shape{Rows: 4, Cols: 4}
	tbl := buildFrom(t, &RaggedDataset{
		Scan:     scan,
		Detector: frame,
		Subs:     2,
		Events:   make([][]uint32, scan.Size()*2),
	})
	if tbl.MaxEvents != 0 {
		t.Fatalf("MaxEvents = %d, want 0", tbl.MaxEvents)
	}
	if len(tbl.Events) != 0 || len(tbl.Rows) != 0 || len(tbl.Cols) != 0 {
		t.Fatal("empty dataset built non-empty tables")
	}

	for _, agg := range []Aggregator{&SerialAggregator{}, &ParallelAggregator{Workers: 2}} {
		dp, err := agg.Diffraction(tbl, Rect{Height: 2, Width: 2}.RealWindow())
		if err != nil {
			t.Fatalf("Diffraction: %v", err)
		}
		if len(dp) != frame.Size() || imageSum(dp) != 0 {
			t.Fatalf("diffraction image not all-zero: sum %d", imageSum(dp))
		}
		rs, err := agg.RealSpace(tbl, Rect{Height: 4, Width: 4}.DiffWindow())
		if err != nil {
			t.Fatalf("RealSpace: %v", err)
		}
		if len(rs) != scan.Size() || imageSum(rs) != 0 {
			t.Fatalf("real-space image not all-zero: sum %d", imageSum(rs))
		}
	}
}
