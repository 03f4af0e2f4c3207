package main

import (
	"os"

	"github.com/punchamoorthee/dealledger/cmd/settlectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
