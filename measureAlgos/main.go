package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	dusc "github.com/ncem-exp/dusc_go/pkg"
)

var configuration dusc.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

var workerCounts = []int{1, 2, 4, 8}
var windowDivisors = []int{2, 4, 8}

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return
	}
	dusc.SetConfiguration(configuration)
	dusc.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		printConfiguration(configuration, logger)
	}

	scan := dusc.Shape{Rows: configuration.ScanRows, Cols: configuration.ScanCols}
	frame := dusc.Shape{Rows: configuration.FrameRows, Cols: configuration.FrameCols}

	logger.Info("Generating synthetic sparse dataset", "main")
	dataset := dusc.NewSyntheticDataset(scan, frame, configuration.SubFrames, configuration.MeanEvents, configuration.Seed)

	buildStart := time.Now()
	tables, err := dusc.BuildTables(dataset, nil)
	if err != nil {
		message := fmt.Errorf("Error building event tables: %w", err)
		logger.Error(message.Error())
		return
	}
	fmt.Printf("Tables: %d x %d, built in %d ms\n", tables.NumRows(), tables.MaxEvents, time.Since(buildStart).Milliseconds())

	start := time.Now()
	for _, div := range windowDivisors {
		realWindow := dusc.Rect{
			Row: 0, Col: 0,
			Height: scan.Rows / div, Width: scan.Cols / div,
		}.RealWindow()
		diffWindow := dusc.Rect{
			Row: 0, Col: 0,
			Height: frame.Rows / div, Width: frame.Cols / div,
		}.DiffWindow()

		serial := dusc.NewAggregator(false, 1)
		refDp, refRs := measure("serial", div, serial, tables, realWindow, diffWindow)

		for _, workers := range workerCounts {
			parallel := &dusc.ParallelAggregator{Workers: workers}
			dp, rs := measure(fmt.Sprintf("parallel-%d", workers), div, parallel, tables, realWindow, diffWindow)

			// The two implementations are interchangeable; any divergence is
			// a defect worth failing loudly over.
			if !imagesEqual(dp, refDp) || !imagesEqual(rs, refRs) {
				message := fmt.Sprintf("parallel (%d workers) images diverge from serial for window 1/%d", workers, div)
				logger.Error(message)
				os.Exit(1)
			}
		}
	}

	duration := time.Since(start)
	fmt.Printf("Total time: %d ms\n", duration.Milliseconds())
}

func measure(name string, div int, aggregator dusc.Aggregator, tables *dusc.Tables,
	realWindow dusc.RealWindow, diffWindow dusc.DiffWindow) ([]uint32, []uint32) {
	var dp, rs []uint32
	var err error

	start := time.Now()
	for i := 0; i < configuration.Iterations; i++ {
		dp, err = aggregator.Diffraction(tables, realWindow)
		if err != nil {
			logger.Error(fmt.Sprintf("Error aggregating diffraction image: %v", err))
			os.Exit(1)
		}
	}
	diffTime := time.Since(start)

	start = time.Now()
	for i := 0; i < configuration.Iterations; i++ {
		rs, err = aggregator.RealSpace(tables, diffWindow)
		if err != nil {
			logger.Error(fmt.Sprintf("Error aggregating real-space image: %v", err))
			os.Exit(1)
		}
	}
	realTime := time.Since(start)

	iters := configuration.Iterations
	fmt.Printf("(%s, window 1/%d) diffraction: %d ms / %d iters, real space: %d ms / %d iters\n",
		name, div, diffTime.Milliseconds(), iters, realTime.Milliseconds(), iters)
	return dp, rs
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
