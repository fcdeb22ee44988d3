package cul

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/cul-bridge/internal/infrastructure/config"
)

// devicesFile is the layout of a standalone registry file:
//
//	devices:
//	  - address: "1111"
//	    name: doorbell
//	    device_class: sound
type devicesFile struct {
	Devices []RegistryEntry `yaml:"devices"`
}

// RegistryFromConfig builds a registry from the devices section of the
// process configuration.
func RegistryFromConfig(devices []config.DeviceConfig) (*Registry, error) {
	entries := make([]RegistryEntry, 0, len(devices))
	for _, d := range devices {
		entries = append(entries, RegistryEntry{
			Address:     d.Address,
			Name:        d.Name,
			DeviceClass: d.DeviceClass,
		})
	}
	return NewRegistry(entries)
}

// LoadRegistryFile reads a YAML registry file. Unknown keys are rejected
// so that a misspelt device_class is caught rather than silently empty.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f devicesFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}

	return NewRegistry(f.Devices)
}
