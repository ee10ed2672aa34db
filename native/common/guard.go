package common

import (
	"errors"
	"fmt"
)

// ErrGlobalEmergency is returned when a platform wide emergency blocks an
// operation.
var ErrGlobalEmergency = errors.New("global emergency active")

// EmergencyView exposes the platform wide emergency flag.
type EmergencyView interface {
	GlobalEmergency() (bool, error)
}

// EmergencyActive reads the flag, treating an unset view as inactive.
func EmergencyActive(v EmergencyView) (bool, error) {
	if v == nil {
		return false, nil
	}
	active, err := v.GlobalEmergency()
	if err != nil {
		return false, fmt.Errorf("read global emergency: %w", err)
	}
	return active, nil
}

// Guard fails with ErrGlobalEmergency while the platform flag is raised.
func Guard(v EmergencyView) error {
	active, err := EmergencyActive(v)
	if err != nil {
		return err
	}
	if active {
		return ErrGlobalEmergency
	}
	return nil
}

// StaticEmergency is a fixed flag value, useful for wiring and tests.
type StaticEmergency bool

// GlobalEmergency implements EmergencyView.
func (s StaticEmergency) GlobalEmergency() (bool, error) { return bool(s), nil }
