package main

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	Execute()
}

func versionString() string {
	return fmt.Sprintf("portal %s (%s, %s)", version, commit[:min(7, len(commit))], runtime.Version())
}
