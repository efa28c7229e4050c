package enums

import "fmt"

// SyncMethod selects the remote backend used for cross-device sync.
type SyncMethod string

const (
	SyncMethodNone     SyncMethod = "none"
	SyncMethodDrive    SyncMethod = "drive"
	SyncMethodDocstore SyncMethod = "docstore"
)

var validSyncMethods = []SyncMethod{SyncMethodNone, SyncMethodDrive, SyncMethodDocstore}

// String implements fmt.Stringer.
func (m SyncMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known SyncMethod.
func (m SyncMethod) IsValid() bool {
	for _, candidate := range validSyncMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseSyncMethod converts raw input into a SyncMethod, defaulting to none.
func ParseSyncMethod(value string) (SyncMethod, error) {
	if value == "" {
		return SyncMethodNone, nil
	}
	for _, candidate := range validSyncMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync method %q", value)
}
