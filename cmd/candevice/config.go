package main

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// hostConfig is the small set of knobs a deployment needs to bring a
// Device up on a real bus: which interface to open, which node id to
// answer to, and the starting point for TPDO0's event timer. Unlike the
// teacher module's ParseEDS, this never constructs object dictionary
// entries at runtime (spec.md's compile-time-only object dictionary) - it
// only configures the fixed dictionary cmd/candevice already builds in
// Go, the same way ini.v1 parses any other .ini-shaped file.
type hostConfig struct {
	Interface        string
	NodeID           uint8
	TPDO0EventMillis uint16
}

func defaultHostConfig() hostConfig {
	return hostConfig{Interface: "can0", NodeID: 0x20, TPDO0EventMillis: 1000}
}

// loadHostConfig reads path (an ini file with a single [device] section)
// and overlays it on top of defaultHostConfig, matching the
// section/GetKey access pattern the teacher module uses to parse EDS
// files in od.go's ParseEDS.
func loadHostConfig(path string) (hostConfig, error) {
	cfg := defaultHostConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading host config: %w", err)
	}

	section, err := file.GetSection("device")
	if err != nil {
		return cfg, fmt.Errorf("host config: missing [device] section: %w", err)
	}

	if key, err := section.GetKey("Interface"); err == nil {
		cfg.Interface = key.Value()
	}
	if key, err := section.GetKey("NodeID"); err == nil {
		n, err := key.Uint()
		if err != nil {
			return cfg, fmt.Errorf("host config: NodeID: %w", err)
		}
		cfg.NodeID = uint8(n)
	}
	if key, err := section.GetKey("TPDO0EventMillis"); err == nil {
		n, err := key.Uint()
		if err != nil {
			return cfg, fmt.Errorf("host config: TPDO0EventMillis: %w", err)
		}
		cfg.TPDO0EventMillis = uint16(n)
	}

	return cfg, nil
}
