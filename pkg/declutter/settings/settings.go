// Package settings holds the user-tunable declutter policy and merges stored
// overrides onto defaults.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// Default policy values.
const (
	DefaultThresholdMinutes   = 90
	DefaultAutoApprove        = false
	DefaultAlarmPeriodMinutes = 5
)

// Field names as they appear in stored records and patches.
const (
	FieldThresholdMinutes   = "thresholdMinutes"
	FieldAutoApprove        = "autoApprove"
	FieldAlarmPeriodMinutes = "alarmPeriodMinutes"
)

// ErrInvalidSettings is returned when a patch would produce settings outside
// their valid ranges. Nothing is persisted in that case.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the declutter policy.
type Settings struct {
	ThresholdMinutes   float64 `mapstructure:"thresholdMinutes"`
	AutoApprove        bool    `mapstructure:"autoApprove"`
	AlarmPeriodMinutes float64 `mapstructure:"alarmPeriodMinutes"`

	// Extra carries fields this version does not know about. They are kept
	// and persisted untouched.
	Extra map[string]any `mapstructure:",remain"`
}

// Defaults returns the built-in policy.
func Defaults() Settings {
	return Settings{
		ThresholdMinutes:   DefaultThresholdMinutes,
		AutoApprove:        DefaultAutoApprove,
		AlarmPeriodMinutes: DefaultAlarmPeriodMinutes,
	}
}

// ThresholdMillis returns the idle threshold in milliseconds.
func (s Settings) ThresholdMillis() int64 {
	return int64(s.ThresholdMinutes * 60 * 1000)
}

// Validate checks the ranges of the known fields.
func (s Settings) Validate() error {
	if math.IsNaN(s.ThresholdMinutes) || math.IsInf(s.ThresholdMinutes, 0) || s.ThresholdMinutes < 1 {
		return fmt.Errorf("%w: %s must be a finite number >= 1, got %v", ErrInvalidSettings, FieldThresholdMinutes, s.ThresholdMinutes)
	}
	if math.IsNaN(s.AlarmPeriodMinutes) || math.IsInf(s.AlarmPeriodMinutes, 0) || s.AlarmPeriodMinutes <= 0 {
		return fmt.Errorf("%w: %s must be a finite number > 0, got %v", ErrInvalidSettings, FieldAlarmPeriodMinutes, s.AlarmPeriodMinutes)
	}
	return nil
}

// ToMap flattens the settings, extra fields included.
func (s Settings) ToMap() map[string]any {
	m := make(map[string]any, len(s.Extra)+3)
	maps.Copy(m, s.Extra)
	m[FieldThresholdMinutes] = s.ThresholdMinutes
	m[FieldAutoApprove] = s.AutoApprove
	m[FieldAlarmPeriodMinutes] = s.AlarmPeriodMinutes
	return m
}

// MarshalJSON encodes the settings as one flat object.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// UnmarshalJSON decodes a flat object, keeping unknown fields in Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := FromMap(m)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// FromMap decodes a flat settings object. Missing fields stay at their zero
// value; use Store.Get for a defaults-merged view.
func FromMap(m map[string]any) (Settings, error) {
	var out Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if len(out.Extra) == 0 {
		out.Extra = nil
	}
	return out, nil
}

// Store reads and patches the persisted settings record.
type Store struct {
	mu       sync.Mutex
	records  types.Records
	defaults Settings
}

// NewStore creates a settings store over records. defaults seeds every field
// the stored record does not set.
func NewStore(records types.Records, defaults Settings) *Store {
	return &Store{
		records:  records,
		defaults: defaults,
	}
}

// Get returns the defaults with the stored override merged on top.
func (s *Store) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.current()
	if err != nil {
		return Settings{}, err
	}
	return FromMap(m)
}

// Patch shallow-merges patch over the current settings, persists the result
// and returns it. Fields absent from patch are untouched.
func (s *Store) Patch(patch map[string]any) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.current()
	if err != nil {
		return Settings{}, err
	}
	maps.Copy(m, patch)

	next, err := FromMap(m)
	if err != nil {
		return Settings{}, err
	}
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}

	if err := s.records.Put(store.KeySettings, m); err != nil {
		return Settings{}, fmt.Errorf("persisting settings: %w", err)
	}
	return next, nil
}

// current returns the merged settings object. Must be called with s.mu held.
func (s *Store) current() (map[string]any, error) {
	m := s.defaults.ToMap()

	var stored map[string]any
	if _, err := s.records.Get(store.KeySettings, &stored); err != nil {
		return nil, err
	}
	maps.Copy(m, stored)
	return m, nil
}
