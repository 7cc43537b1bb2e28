package dusc

// Shape holds the dimensions of a raster scan or of a detector frame.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// SparseDataset is the boundary to the loading layer: one ragged list of
// flat detector pixel indices per (scan position, sub-frame). Positions are
// numbered row-major over the scan raster.
type SparseDataset interface {
	ScanShape() Shape
	FrameShape() Shape
	SubFrames() int
	Frame(position, sub int) []uint32
}

// RaggedDataset is an in-memory SparseDataset. Events is indexed by
// position*Subs+sub.
type RaggedDataset struct {
	Scan     Shape
	Detector Shape
	Subs     int
	Events   [][]uint32
}

func (d *RaggedDataset) ScanShape() Shape {
	return d.Scan
}

func (d *RaggedDataset) FrameShape() Shape {
	return d.Detector
}

func (d *RaggedDataset) SubFrames() int {
	return d.Subs
}

func (d *RaggedDataset) Frame(position, sub int) []uint32 {
	return d.Events[position*d.Subs+sub]
}
