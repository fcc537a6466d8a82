package cmd

import (
	"fmt"
	"io"
)

const banner = `
  _____ _ _  __  __
 |  ___(_) |_\ \/ /
 | |_  | | __|\  / 
 |  _| | | |_ /  \ 
 |_|   |_|\__/_/\_\
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Reference Auth Service - Version %s\x1b[0m\n\n", Version)
}
