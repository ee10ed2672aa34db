package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"farmchain/native/params/state"
	"farmchain/storage"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Emergency is the persisted platform wide emergency switch.
type Emergency struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
	Since  uint64 `json:"since,omitempty"`
}

// Store provides typed accessors for platform parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetGlobalEmergency persists the platform emergency flag. Values are stored
// as JSON so operators can inspect them with generic tooling.
func (s *Store) SetGlobalEmergency(emergency Emergency) error {
	st, err := s.withState()
	if err != nil {
		return err
	}
	emergency.Reason = strings.TrimSpace(emergency.Reason)
	if !emergency.Active {
		emergency = Emergency{}
	}
	encoded, err := json.Marshal(emergency)
	if err != nil {
		return fmt.Errorf("params: encode emergency: %w", err)
	}
	return st.ParamStoreSet(ParamsKeyEmergency, encoded)
}

// Emergency loads the persisted flag. When unset, an inactive value is
// returned.
func (s *Store) Emergency() (Emergency, error) {
	st, err := s.withState()
	if err != nil {
		return Emergency{}, err
	}
	raw, ok, err := st.ParamStoreGet(ParamsKeyEmergency)
	if err != nil {
		return Emergency{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return Emergency{}, nil
	}
	var emergency Emergency
	if err := json.Unmarshal(raw, &emergency); err != nil {
		return Emergency{}, fmt.Errorf("params: decode emergency: %w", err)
	}
	return emergency, nil
}

// GlobalEmergency reports whether the platform flag is raised.
func (s *Store) GlobalEmergency() (bool, error) {
	st, err := s.withState()
	if err != nil {
		return false, err
	}
	return state.GlobalEmergency(st)
}

// DBState stores parameters in a key-value database under a fixed prefix.
type DBState struct {
	db storage.Database
}

// NewDBState wraps db as a parameter backend.
func NewDBState(db storage.Database) *DBState {
	return &DBState{db: db}
}

func paramKey(name string) []byte {
	return []byte("params/" + name)
}

// ParamStoreSet implements StoreState.
func (d *DBState) ParamStoreSet(name string, value []byte) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("params: database not configured")
	}
	return d.db.Put(paramKey(name), value)
}

// ParamStoreGet implements StoreState.
func (d *DBState) ParamStoreGet(name string) ([]byte, bool, error) {
	if d == nil || d.db == nil {
		return nil, false, fmt.Errorf("params: database not configured")
	}
	raw, err := d.db.Get(paramKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
