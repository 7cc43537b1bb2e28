package dusc

import (
	"fmt"
	"sync"
)

// ImageFunc receives a finished aggregation. The image carries raw counts;
// log scaling and rendering are the caller's business.
type ImageFunc func(image []uint32, err error)

// Session dispatches window updates to the aggregator with a latest-wins
// guarantee: during a drag the ROI layer posts windows faster than they
// aggregate, and only the most recent request may ever reach the callbacks.
// Each direction has one worker goroutine fed by a capacity-1 mailbox;
// posting replaces any pending window, and a result computed while a newer
// window is already queued is dropped.
//
// A session is built for one loaded dataset and discarded wholesale,
// together with its tables, when a new dataset is loaded.
type Session struct {
	tables *Tables
	agg    Aggregator

	real chan Rect
	diff chan Rect
	done chan struct{}
	wg   sync.WaitGroup

	onDiffraction ImageFunc
	onRealSpace   ImageFunc
}

func NewSession(t *Tables, agg Aggregator, onDiffraction, onRealSpace ImageFunc) *Session {
	s := &Session{
		tables:        t,
		agg:           agg,
		real:          make(chan Rect, 1),
		diff:          make(chan Rect, 1),
		done:          make(chan struct{}),
		onDiffraction: onDiffraction,
		onRealSpace:   onRealSpace,
	}
	s.wg.Add(2)
	go s.run(s.real, s.computeDiffraction, s.onDiffraction)
	go s.run(s.diff, s.computeRealSpace, s.onRealSpace)
	return s
}

// SetRealWindow posts a real-space window; the matching diffraction image is
// delivered to the diffraction callback.
func (s *Session) SetRealWindow(r Rect) {
	post(s.real, r)
}

// SetDiffWindow posts a detector-space window; the matching real-space image
// is delivered to the real-space callback.
func (s *Session) SetDiffWindow(r Rect) {
	post(s.diff, r)
}

// Close stops both workers and waits for any in-flight aggregation.
func (s *Session) Close() {
	close(s.done)
	s.wg.Wait()
}

// post replaces whatever is pending in the mailbox with the newest window.
func post(updates chan Rect, r Rect) {
	for {
		select {
		case updates <- r:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

func (s *Session) run(updates chan Rect, compute func(Rect) ([]uint32, error), deliver ImageFunc) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("session worker recovered from panic: %v", r))
		}
		s.wg.Done()
	}()

	for {
		select {
		case <-s.done:
			return
		case r := <-updates:
			image, err := compute(r)
			if len(updates) > 0 {
				// A newer window arrived while aggregating; this result is
				// stale and must not be displayed.
				continue
			}
			deliver(image, err)
		}
	}
}

func (s *Session) computeDiffraction(r Rect) ([]uint32, error) {
	return s.agg.Diffraction(s.tables, r.RealWindow())
}

func (s *Session) computeRealSpace(r Rect) ([]uint32, error) {
	return s.agg.RealSpace(s.tables, r.DiffWindow())
}
