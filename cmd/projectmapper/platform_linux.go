//go:build linux

package main

import "github.com/1broseidon/projectmapper/internal/platform"

// openPlatform connects to the X server named by $DISPLAY.
func openPlatform() (platform.Backend, func(), error) {
	b, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		return nil, nil, err
	}
	return b, b.Disconnect, nil
}
