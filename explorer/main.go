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
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	scan := dusc.Shape{Rows: configuration.ScanRows, Cols: configuration.ScanCols}
	frame := dusc.Shape{Rows: configuration.FrameRows, Cols: configuration.FrameCols}

	logger.Info("Generating synthetic sparse dataset", "main")
	dataset := dusc.NewSyntheticDataset(scan, frame, configuration.SubFrames, configuration.MeanEvents, configuration.Seed)

	logger.Info("Building event tables", "main")
	start := time.Now()
	tables, err := dusc.BuildTables(dataset, func(done, total int) {
		if VerbosityLevel > 0 {
			message := fmt.Sprintf("Built %d/%d event rows", done, total)
			logger.Info(message, "tables")
		}
	})
	if err != nil {
		message := fmt.Errorf("Error building event tables: %w", err)
		logger.Error(message.Error())
		return
	}
	duration := time.Since(start)
	message := fmt.Sprintf("Tables built in %d ms, max events per frame: %d", duration.Milliseconds(), tables.MaxEvents)
	logger.Info(message, "main")

	aggregator := dusc.NewAggregator(configuration.Parallel, configuration.NumWorkers)
	session := dusc.NewSession(tables, aggregator,
		func(image []uint32, err error) { reportImage("diffraction", image, err) },
		func(image []uint32, err error) { reportImage("real space", image, err) })

	// Replay a diagonal drag of both windows across their extents, sized
	// like the explorer's initial ROIs (a fraction of each dimension).
	div := configuration.WindowDivisor
	if div < 1 {
		div = 4
	}
	realSize := dusc.Rect{Height: scan.Rows / div, Width: scan.Cols / div}
	diffSize := dusc.Rect{Height: frame.Rows / div, Width: frame.Cols / div}

	steps := 16
	start = time.Now()
	for step := 0; step < steps; step++ {
		realPos := dusc.Rect{
			Row:    step * (scan.Rows - realSize.Height) / steps,
			Col:    step * (scan.Cols - realSize.Width) / steps,
			Height: realSize.Height,
			Width:  realSize.Width,
		}
		diffPos := dusc.Rect{
			Row:    step * (frame.Rows - diffSize.Height) / steps,
			Col:    step * (frame.Cols - diffSize.Width) / steps,
			Height: diffSize.Height,
			Width:  diffSize.Width,
		}
		session.SetRealWindow(realPos)
		session.SetDiffWindow(diffPos)
		time.Sleep(30 * time.Millisecond)
	}
	session.Close()
	duration = time.Since(start)
	message = fmt.Sprintf("Replayed %d window updates in %d ms", steps, duration.Milliseconds())
	logger.Info(message, "main")
}

func reportImage(kind string, image []uint32, err error) {
	if err != nil {
		message := fmt.Errorf("Error aggregating %s image: %w", kind, err)
		logger.Error(message.Error())
		return
	}
	var total uint64
	var peak uint32
	for _, v := range image {
		total += uint64(v)
		if v > peak {
			peak = v
		}
	}
	message := fmt.Sprintf("Updated %s image: %d counts, peak %d", kind, total, peak)
	logger.Info(message, "explorer")
}
