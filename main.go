package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"

	"rkunpack/cli"
)

func main() {
	log.SetHandler(text.New(os.Stderr))
	cli.Start()
}
