// Command ofcored runs the OpenFlow 1.3 controller core as a
// standalone process: it binds the listening socket, arbitrates every
// handshaked switch onto one shared event bus, and serves Prometheus
// metrics over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/flowbridge/ofcore/cmd/ofcored/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
