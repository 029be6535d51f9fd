package model

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is assigned to the first document of a family.
var InitialVersion = Version{Major: 1, Minor: 0}

// Version is the major.minor pair of a document within its family.
type Version struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

// String renders the version zero-padded, e.g. 01.00.
func (v Version) String() string {
	return fmt.Sprintf("%02d.%02d", v.Major, v.Minor)
}

// Less orders versions by (major, minor).
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// Next returns the version following v. A major bump resets the minor part.
func (v Version) Next(major bool) Version {
	if major {
		return Version{Major: v.Major + 1, Minor: 0}
	}
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// ParseVersion parses the rendered form produced by Version.String. Unpadded
// input such as "1.2" is accepted as well.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q, expected <major>.<minor>", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}

	return Version{Major: uint32(major), Minor: uint32(minor)}, nil
}
