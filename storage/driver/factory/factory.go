// Package factory maps backend names to constructors so storage
// drivers stay pluggable: a driver package registers itself from init
// and callers create it by name with a parameter map.
package factory

import (
	"context"
	"fmt"

	storagedriver "github.com/akashica/akashica/storage/driver"
)

// driverFactories stores the mapping between storage driver names and
// their respective factories.
var driverFactories = make(map[string]StorageDriverFactory)

// StorageDriverFactory constructs a storagedriver.StorageDriver from a
// parameter map. Parameters vary by driver and may be ignored; each
// parameter key must only consist of lowercase letters and numbers.
type StorageDriverFactory interface {
	Create(ctx context.Context, parameters map[string]interface{}) (storagedriver.StorageDriver, error)
}

// Register makes a storage driver available by the provided name. It
// panics on a nil factory or a duplicate name.
func Register(name string, factory StorageDriverFactory) {
	if factory == nil {
		panic("must not provide nil StorageDriverFactory")
	}
	if _, registered := driverFactories[name]; registered {
		panic(fmt.Sprintf("StorageDriverFactory named %s already registered", name))
	}
	driverFactories[name] = factory
}

// Create constructs a new storagedriver.StorageDriver with the given
// name and parameters. The driver must have been registered first.
func Create(ctx context.Context, name string, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	driverFactory, ok := driverFactories[name]
	if !ok {
		return nil, InvalidStorageDriverError{Name: name}
	}
	return driverFactory.Create(ctx, parameters)
}

// InvalidStorageDriverError records an attempt to construct an
// unregistered storage driver.
type InvalidStorageDriverError struct {
	Name string
}

func (err InvalidStorageDriverError) Error() string {
	return fmt.Sprintf("StorageDriver not registered: %s", err.Name)
}
