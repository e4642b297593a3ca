//go:build !cgo

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "rdp-bridge requires CGO (GStreamer and openh264 bindings)")
	os.Exit(1)
}
