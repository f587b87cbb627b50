package main

import (
	"os"

	"github.com/ruta-lang/ruta/pkg/cli"
)

func main() {
	os.Exit(cli.Entry(os.Args[1:]))
}
