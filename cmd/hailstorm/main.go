package main

import (
	"fmt"
	"os"

	"github.com/hailstorm-project/hailstorm/cmd/hailstorm/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
