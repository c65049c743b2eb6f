package main

import (
	"github.com/Paintersrp/tasktide/internal/cli"
	"github.com/Paintersrp/tasktide/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
