package main

import (
	"os"

	"github.com/Mora-na/mimotions/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
