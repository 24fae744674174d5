package main

import (
	"os"

	"github.com/sillyfrog/tesla-mqtt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
