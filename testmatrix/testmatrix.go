// Package testmatrix loads the static device-quirk fixture used by the
// session's table-driven tests, keyed by meter family rather than by
// individual serial number.
package testmatrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Device describes one meter family's known quirks, used to parametrize
// session-level tests against real-world FCB/retry behavior.
type Device struct {
	Family string `yaml:"family"`
	// RequiresFCBFallback marks devices observed to time out on the
	// first post-reset REQ_UD2 (FCB=1) and require a retry at FCB=0.
	RequiresFCBFallback bool `yaml:"requires_fcb_fallback"`
	// MoreRecordsVia names which wire signal this family uses to
	// indicate additional datagrams remain: "dif" (DIF=0x1F marker
	// record) or "status" (application-specific status bits).
	MoreRecordsVia string `yaml:"more_records_via"`
	Notes          string `yaml:"notes"`
}

// Matrix is the parsed contents of a device fixture file.
type Matrix struct {
	Devices []Device `yaml:"devices"`
}

// Load reads and parses a device matrix YAML file from path.
func Load(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testmatrix: reading %s: %w", path, err)
	}
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("testmatrix: parsing %s: %w", path, err)
	}
	return &m, nil
}

// ByFamily returns the Device entry named family, and whether it was found.
func (m *Matrix) ByFamily(family string) (Device, bool) {
	for _, d := range m.Devices {
		if d.Family == family {
			return d, true
		}
	}
	return Device{}, false
}
