package main

import (
	"context"
	"os"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
