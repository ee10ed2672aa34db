package state

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const emergencyKey = "system/emergency"

// Reader exposes the minimal parameter store capabilities required to inspect
// the emergency switch.
type Reader interface {
	ParamStoreGet(name string) ([]byte, bool, error)
}

// GlobalEmergency reports whether the platform wide emergency flag is raised.
func GlobalEmergency(reader Reader) (bool, error) {
	if reader == nil {
		return false, fmt.Errorf("params: reader not configured")
	}
	raw, ok, err := reader.ParamStoreGet(emergencyKey)
	if err != nil {
		return false, fmt.Errorf("params: load emergency: %w", err)
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false, fmt.Errorf("params: decode emergency: %w", err)
	}
	return payload.Active, nil
}
