// Package configuration defines the YAML configuration that selects
// and parameterizes a storage backend, intended to be provided by a
// yaml file. Tenant and credential-profile management live outside the
// engine.
package configuration

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

// Configuration is the engine configuration.
//
//	version: 1
//	log:
//	  level: info
//	storage:
//	  filesystem:
//	    rootdirectory: /var/lib/akashica
type Configuration struct {
	// Version is the version which defines the format of the rest of
	// the configuration.
	Version int `yaml:"version"`

	// Log supports setting parameters of the logging subsystem.
	Log Log `yaml:"log,omitempty"`

	// Storage is the configuration for the storage driver.
	Storage Storage `yaml:"storage"`
}

// Log supports setting parameters related to the logging subsystem.
type Log struct {
	// Level is the granularity at which engine operations are logged:
	// error, warn, info or debug.
	Level string `yaml:"level,omitempty"`
}

// Parameters defines a key-value parameters map handed to a storage
// driver factory.
type Parameters map[string]interface{}

// Storage defines the configuration for the storage driver: a map
// with exactly one key, the driver name, whose value is the driver's
// parameter map.
type Storage map[string]Parameters

// Type returns the storage driver type, such as filesystem or s3.
func (storage Storage) Type() string {
	var storageType []string
	for k := range storage {
		storageType = append(storageType, k)
	}
	if len(storageType) > 1 {
		panic("multiple storage drivers specified in configuration: " + strings.Join(storageType, ", "))
	}
	if len(storageType) == 1 {
		return storageType[0]
	}
	return ""
}

// Parameters returns the parameters map for the configured driver.
func (storage Storage) Parameters() Parameters {
	return storage[storage.Type()]
}

// Parse parses an input configuration yaml document. Unknown fields
// are rejected so typos surface early.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.UnmarshalStrict(in, config); err != nil {
		return nil, err
	}
	if config.Version != 1 {
		return nil, fmt.Errorf("unsupported configuration version %d", config.Version)
	}
	if config.Storage.Type() == "" {
		return nil, fmt.Errorf("no storage driver configured")
	}
	return config, nil
}
