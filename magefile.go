//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildExplorer)
	mg.Deps(BuildMeasureAlgos)
	fmt.Println("Compilation finished")
	return nil
}

func BuildExplorer() error {
	fmt.Println("Building explorer executable...")
	cmd := exec.Command("go", "build", "-o", "./bin/explorer", "./explorer")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func BuildMeasureAlgos() error {
	fmt.Println("Building measureAlgos executable...")
	cmd := exec.Command("go", "build", "-o", "./bin/measureAlgos", "./measureAlgos")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Test() error {
	fmt.Println("Running tests...")
	cmd := exec.Command("go", "test", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
