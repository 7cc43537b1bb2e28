package main

import (
	"encoding/json"
	"fmt"
	"os"

	dusc "github.com/ncem-exp/dusc_go/pkg"
)

func LoadConfiguration(filename string) (dusc.Configuration, error) {
	var config dusc.Configuration

	// Set default values
	config.Verbosity = 0
	config.NumWorkers = 1
	config.Parallel = true
	config.MaxTableGB = 64
	config.ScanRows = 128
	config.ScanCols = 128
	config.FrameRows = 576
	config.FrameCols = 576
	config.SubFrames = 1
	config.MeanEvents = 64
	config.Seed = 1
	config.Iterations = 10
	config.WindowDivisor = 4

	if filename == "" {
		return config, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config dusc.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Scan shape: %dx%d", config.ScanRows, config.ScanCols), "config")
	logger.Info(fmt.Sprintf("Frame shape: %dx%d", config.FrameRows, config.FrameCols), "config")
	logger.Info(fmt.Sprintf("Sub-frames: %d", config.SubFrames), "config")
	logger.Info(fmt.Sprintf("Mean events: %d", config.MeanEvents), "config")
	logger.Info(fmt.Sprintf("Seed: %d", config.Seed), "config")
	logger.Info(fmt.Sprintf("Iterations: %d", config.Iterations), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Max table GB: %d", config.MaxTableGB), "config")
}
