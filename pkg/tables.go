package dusc

import (
	"fmt"
	"runtime"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc reports table-build progress as rows copied out of the total.
type ProgressFunc func(done, total int)

var progressEvery = 4096

// Tables is the dense encoding of one loaded dataset. Events holds the
// zero-padded flat pixel indices, Rows and Cols the per-slot detector
// coordinates, all three flattened to [numPositions*SubFrames*MaxEvents].
// The slots of (position p, sub-frame s) are the contiguous span starting at
// (p*SubFrames+s)*MaxEvents. Tables are immutable once built and shared
// read-only by every reduction; a new load builds a fresh set.
type Tables struct {
	Events    []uint32
	Rows      []uint32
	Cols      []uint32
	Scan      Shape
	Frame     Shape
	SubFrames int
	MaxEvents int
}

// NumRows is the number of padded table rows, one per (position, sub-frame).
func (t *Tables) NumRows() int {
	return t.Scan.Size() * t.SubFrames
}

// BuildTables ingests a ragged dataset and builds the padded event table plus
// the derived row/column tables. All three stay resident, so the memory cost
// is roughly three times the padded table itself; the build refuses upfront
// with ErrAllocation when that exceeds the configured max_table_gb budget,
// before anything is allocated. The dataset is walked twice: once for the
// ragged lengths, once to copy. Large datasets take a while, so progress is
// reported through the callback instead of leaving the caller blind.
func BuildTables(ds SparseDataset, progress ProgressFunc) (*Tables, error) {
	scan := ds.ScanShape()
	frame := ds.FrameShape()
	subs := ds.SubFrames()

	if scan.Rows < 1 || scan.Cols < 1 {
		return nil, &ErrDatasetFormat{Reason: fmt.Sprintf("scan shape %dx%d", scan.Rows, scan.Cols)}
	}
	if frame.Rows < 1 || frame.Cols < 1 {
		return nil, &ErrDatasetFormat{Reason: fmt.Sprintf("frame shape %dx%d", frame.Rows, frame.Cols)}
	}
	if subs < 1 {
		return nil, &ErrDatasetFormat{Reason: fmt.Sprintf("%d sub-frames per position", subs)}
	}

	nRows := scan.Size() * subs
	lengths := make([]int, nRows)
	for pos := 0; pos < scan.Size(); pos++ {
		for sub := 0; sub < subs; sub++ {
			lengths[pos*subs+sub] = len(ds.Frame(pos, sub))
		}
	}
	maxEvents := slices.Max(lengths)

	required := int64(nRows) * int64(maxEvents) * 4 * 3
	budget := int64(configuration.MaxTableGB) << 30
	if budget > 0 && required > budget {
		return nil, &ErrAllocation{RequiredBytes: required, BudgetBytes: budget}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Padded table: %d x %d (%.2f GB resident)", nRows, maxEvents, float64(required)/1e9)
		logger.Info(message, "tables")
	}

	t := &Tables{
		Events:    make([]uint32, nRows*maxEvents),
		Scan:      scan,
		Frame:     frame,
		SubFrames: subs,
		MaxEvents: maxEvents,
	}

	limit := uint32(frame.Size())
	done := 0
	for pos := 0; pos < scan.Size(); pos++ {
		for sub := 0; sub < subs; sub++ {
			events := ds.Frame(pos, sub)
			base := (pos*subs + sub) * maxEvents
			for i, v := range events {
				if v >= limit {
					return nil, &ErrDatasetFormat{
						Reason: fmt.Sprintf("event index %d at position %d, sub-frame %d exceeds frame size %d", v, pos, sub, limit),
					}
				}
				t.Events[base+i] = v
			}
			done++
			if progress != nil && done%progressEvery == 0 {
				progress(done, nRows)
			}
		}
	}
	if progress != nil {
		progress(nRows, nRows)
	}

	t.Rows, t.Cols = deriveCoordinates(t.Events, nRows, maxEvents, uint32(frame.Cols))
	return t, nil
}

// deriveCoordinates computes row = index / frameCols and col = index mod
// frameCols for every slot, in parallel over blocks of table rows. Padding
// slots come out as (0, 0) by the same arithmetic; they are never
// special-cased here.
func deriveCoordinates(events []uint32, nRows, maxEvents int, frameCols uint32) ([]uint32, []uint32) {
	rows := make([]uint32, len(events))
	cols := make([]uint32, len(events))

	workers := configuration.NumWorkers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	chunk := (nRows + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	var g errgroup.Group
	for start := 0; start < nRows; start += chunk {
		end := start + chunk
		if end > nRows {
			end = nRows
		}
		lo := start * maxEvents
		hi := end * maxEvents
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				v := events[i]
				rows[i] = v / frameCols
				cols[i] = v % frameCols
			}
			return nil
		})
	}
	g.Wait()
	return rows, cols
}
