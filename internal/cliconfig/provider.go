package cliconfig

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

var errReadBytes = errors.New("cliconfig: map provider does not support ReadBytes")

// mapProvider feeds an in-memory map with dotted keys to koanf. It carries
// defaults and command line flags.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
