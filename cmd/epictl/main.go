// Command epictl runs the explorer queries offline against a directory of
// feed CSV files and prints the resulting series.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	go run ./cmd/epictl --feeds data/mock cases --region London --dividers 30,60
//	go run ./cmd/epictl --feeds data/mock lag --band "85+ yrs" --output csv
//	go run ./cmd/epictl --feeds data/mock validate
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "epictl:", err)
		os.Exit(1)
	}
}
