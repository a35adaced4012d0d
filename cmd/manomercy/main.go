package main

import (
	"os"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
