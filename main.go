package main

import (
	"context"
	"os"

	"github.com/msomdec/persist/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Stdout, os.Args[1:]))
}
