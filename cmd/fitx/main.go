package main

import "github.com/jmcleod/fitx/cmd/fitx/cmd"

func main() {
	cmd.Execute()
}
