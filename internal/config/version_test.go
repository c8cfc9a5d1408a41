package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		version int
		reason  string
	}{
		{CurrentVersion, ""},
		{0, ReasonMissing},
		{-1, ReasonMissing},
		{CurrentVersion + 1, ReasonNewer},
	}

	for _, tt := range tests {
		err := ValidateVersion(tt.version)
		if tt.reason == "" {
			if err != nil {
				t.Errorf("ValidateVersion(%d) = %v, want nil", tt.version, err)
			}
			continue
		}
		var verr *VersionError
		if !errors.As(err, &verr) || verr.Reason != tt.reason {
			t.Errorf("ValidateVersion(%d) = %v, want reason %q", tt.version, err, tt.reason)
		}
	}
}

func TestVersionError_Messages(t *testing.T) {
	var nilErr *VersionError
	if nilErr.Error() != "" {
		t.Error("nil receiver should yield empty string")
	}
	if msg := (&VersionError{Version: 5, Current: 1}).Error(); !strings.Contains(msg, "unsupported") {
		t.Errorf("message = %q", msg)
	}
	if msg := (&VersionError{Version: 2, Current: 1, Reason: ReasonNewer}).Error(); !strings.Contains(msg, "upgrade folio") {
		t.Errorf("message = %q", msg)
	}
}
