// Package kvstore is the device-local key-value persistence used in guest mode
// and for the preferences that never leave the device.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Keys persisted by the application
const (
	KeyTheme               = "theme"
	KeyPin                 = "pin"
	KeyActions             = "actions"
	KeyKids                = "kids"
	KeyLogs                = "logs"
	KeyFamilyID            = "family_id"
	KeyOnboardingCompleted = "onboarding_completed"
	KeyAuthToken           = "auth_token"
	KeyDeviceID            = "device_id"
)

// Store is a uniform get/set/remove/clear contract over durable storage
type Store interface {
	Get(ctx context.Context, key string) (Value, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Value is a stored entry as read back from a Store
type Value struct {
	raw     string
	present bool
}

// NewValue wraps stored text
func NewValue(raw string) Value {
	return Value{raw: raw, present: true}
}

// Present reports whether the key existed
func (v Value) Present() bool { return v.present }

// Raw returns the stored text
func (v Value) Raw() string { return v.raw }

// Decode JSON-decodes the stored text into dst. When the text is not JSON and dst
// points to a string kind, the raw text is assigned instead. Absent values leave dst untouched.
func (v Value) Decode(dst any) error {
	if !v.present {
		return nil
	}
	err := json.Unmarshal([]byte(v.raw), dst)
	if err == nil {
		return nil
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.String {
		rv.Elem().SetString(v.raw)
		return nil
	}
	return fmt.Errorf("failed to decode stored value: %w", err)
}

// Encode renders a value for storage: string kinds raw, everything else as JSON
func Encode(value any) (string, error) {
	if rv := reflect.ValueOf(value); rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	return string(b), nil
}
