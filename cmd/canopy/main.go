package main

import "github.com/canopydb/canopy/cmd/canopy/cmd"

func main() {
	cmd.Execute()
}
