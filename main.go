package main

import (
	"github.com/tgagor/groundsight/cmd"
)

var BuildVersion string // Will be set dynamically at build time.
var appName string = "groundsight"

func main() {
	cmd.Execute(appName, BuildVersion)
}
