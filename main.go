// main is the entry point for the skysig CLI.
package main

import (
	"os"

	"github.com/huangsam/skysig/cmd"
	"github.com/huangsam/skysig/internal/contract"
)

func main() {
	err := cmd.Execute()
	if perr := cmd.StopProfiling(); perr != nil {
		contract.LogWarn("Profiling", perr)
	}
	if err != nil {
		contract.LogFatal("Command failed", err)
	}
	os.Exit(0)
}
