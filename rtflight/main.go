// Package main is the entry point of the rtflight testbed.
package main

import "github.com/sarchlab/rtflight/rtflight/cmd"

func main() {
	cmd.Execute()
}
