package main

import (
	"github.com/tvbeek/pdepend/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
