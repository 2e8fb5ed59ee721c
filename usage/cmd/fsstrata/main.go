package main

import (
	"os"

	"github.com/thinkparq/fsstrata/usage/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
