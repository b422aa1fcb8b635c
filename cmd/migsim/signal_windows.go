//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals relays Ctrl+C to ch; SIGTERM does not exist on Windows.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
