package dusc

import (
	"sync"
	"testing"
	"time"
)

// sessionTables builds 10 scan positions in one row, position i carrying
// i+1 electrons on pixel 7, so every window result is identifiable.
func sessionTables(t *testing.T) *Tables {
	t.Helper()
	events := make([][]uint32, 10)
	for i := range events {
		list := make([]uint32, i+1)
		for j := range list {
			list[j] = 7
		}
		events[i] = list
	}
	return buildFrom(t, &RaggedDataset{
		Scan:     Shape{Rows: 1, Cols: 10},
		Detector: Shape{Rows: 4, Cols: 4},
		Subs:     1,
		Events:   events,
	})
}

func TestSessionLatestWins(t *testing.T) {
	tbl := sessionTables(t)

	var mu sync.Mutex
	var delivered []uint32
	session := NewSession(tbl, SerialAggregator{},
		func(image []uint32, err error) {
			if err != nil {
				t.Errorf("diffraction callback error: %v", err)
				return
			}
			mu.Lock()
			delivered = append(delivered, image[7])
			mu.Unlock()
		},
		func([]uint32, error) {})

	// A burst of window updates, like a fast drag across the scan row.
	// Position i holds i+1 electrons, so the final image must carry 10.
	for i := 0; i < 10; i++ {
		session.SetRealWindow(Rect{Row: 0, Col: i, Height: 0, Width: 0})
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		snapshot := append([]uint32(nil), delivered...)
		mu.Unlock()
		if n := len(snapshot); n > 0 && snapshot[n-1] == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("final window never delivered, got %v", snapshot)
		}
		time.Sleep(time.Millisecond)
	}
	session.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) > 10 {
		t.Fatalf("delivered %d results for 10 requests", len(delivered))
	}
	for _, v := range delivered {
		if v < 1 || v > 10 {
			t.Fatalf("delivered count %d matches no posted window", v)
		}
	}
}

func TestSessionRealSpaceDelivery(t *testing.T) {
	tbl := sessionTables(t)

	results := make(chan []uint32, 1)
	session := NewSession(tbl, &ParallelAggregator{Workers: 2},
		func([]uint32, error) {},
		func(image []uint32, err error) {
			if err != nil {
				t.Errorf("real-space callback error: %v", err)
				return
			}
			select {
			case results <- image:
			default:
			}
		})
	defer session.Close()

	// Pixel 7 is row 1, col 3 on a 4-wide frame. With the strict bounds,
	// size 1 at (1, 3) selects exactly that pixel and keeps the padding
	// slots at (0, 0) outside, so position i must count i+1.
	session.SetDiffWindow(Rect{Row: 1, Col: 3, Height: 1, Width: 1})

	select {
	case rs := <-results:
		for i, v := range rs {
			if v != uint32(i+1) {
				t.Fatalf("rs[%d] = %d, want %d", i, v, i+1)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no real-space image delivered")
	}
}
