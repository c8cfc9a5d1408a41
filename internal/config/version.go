package config

import "fmt"

// CurrentVersion is the config file version this build writes and reads.
const CurrentVersion = 1

// Reasons a config version is rejected.
const (
	ReasonMissing = "missing or outdated"
	ReasonOlder   = "outdated"
	ReasonNewer   = "newer than this build"
)

// VersionError reports a config file whose version this build cannot read.
type VersionError struct {
	Version int
	Current int
	Reason  string
}

func (e *VersionError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case ReasonNewer:
		return fmt.Sprintf("config version %d is %s (current: %d). upgrade folio to continue", e.Version, e.Reason, e.Current)
	case "":
		return fmt.Sprintf("config version %d is unsupported (current: %d). update the version field", e.Version, e.Current)
	default:
		return fmt.Sprintf("config version %d is %s (current: %d). update the version field", e.Version, e.Reason, e.Current)
	}
}

// ValidateVersion returns a *VersionError unless version is CurrentVersion.
func ValidateVersion(version int) error {
	var reason string
	switch {
	case version <= 0:
		reason = ReasonMissing
	case version < CurrentVersion:
		reason = ReasonOlder
	case version > CurrentVersion:
		reason = ReasonNewer
	default:
		return nil
	}
	return &VersionError{Version: version, Current: CurrentVersion, Reason: reason}
}
