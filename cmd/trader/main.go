package main

import (
	"os"

	"github.com/kjannette/trahn-post-trader/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
