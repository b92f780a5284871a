package domain

import "fmt"

// Status is the extraction state of a file.
type Status uint8

const (
	StatusPending Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
	StatusSkipped
)

var statusNames = [...]string{
	StatusPending:    "PENDING",
	StatusProcessing: "PROCESSING",
	StatusCompleted:  "COMPLETED",
	StatusFailed:     "FAILED",
	StatusSkipped:    "SKIPPED",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus converts a persisted label back into a Status.
func ParseStatus(label string) (Status, error) {
	for i, name := range statusNames {
		if name == label {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("ParseStatus: unknown status %q", label)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("MarshalText: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Extractable reports whether an extraction may start from this status.
// PROCESSING is excluded; stale PROCESSING records are handled by the caller.
func (s Status) Extractable() bool {
	switch s {
	case StatusPending, StatusFailed, StatusCompleted, StatusSkipped:
		return true
	case StatusProcessing:
		return false
	default:
		return false
	}
}
