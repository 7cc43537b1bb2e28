package dusc

type Configuration struct {
	Verbosity     int   `json:"verbosity"`
	NumWorkers    int   `json:"num_workers"`
	Parallel      bool  `json:"parallel"`
	MaxTableGB    int   `json:"max_table_gb"`
	ScanRows      int   `json:"scan_rows"`
	ScanCols      int   `json:"scan_cols"`
	FrameRows     int   `json:"frame_rows"`
	FrameCols     int   `json:"frame_cols"`
	SubFrames     int   `json:"sub_frames"`
	MeanEvents    int   `json:"mean_events"`
	Seed          int64 `json:"seed"`
	Iterations    int   `json:"iterations"`
	WindowDivisor int   `json:"window_divisor"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}
