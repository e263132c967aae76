//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/1broseidon/projectmapper/internal/platform"
)

func openPlatform() (platform.Backend, func(), error) {
	return nil, nil, fmt.Errorf("no presentation backend for %s", runtime.GOOS)
}
