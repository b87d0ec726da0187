package main

import (
	"os"

	"github.com/AmmannChristian/go-credmon/credmoncmd"
	"github.com/jessevdk/go-flags"
)

func main() {
	cmd := &credmoncmd.Command{}

	parser := flags.NewParser(cmd, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
