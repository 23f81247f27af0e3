package main

import (
	"github.com/bstardust/gpx-geotagger/pkg/cli"
)

func main() {
	cli.Execute()
}
