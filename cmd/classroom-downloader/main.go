package main

import (
	"go-classroom-download/cmd/classroom-downloader/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
