package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/emberlang/ember/internal/embercmd"
)

// placeholder, replaced on build
var version = "{v}" // must be N.N[.N]

func main() {
	os.Exit(embercmd.Run(os.Args[1:], mainer.CurrentStdio(), version))
}
