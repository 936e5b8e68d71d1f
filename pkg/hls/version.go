package hls

import (
	"strconv"
)

// ProtocolVersion is an EXT-X-VERSION value. Versions are ordered; V1 is the
// lowest and the implied version when a playlist declares none.
type ProtocolVersion uint8

// Known protocol versions.
const (
	V1 ProtocolVersion = iota + 1
	V2
	V3
	V4
	V5
	V6
	V7
)

func (v ProtocolVersion) String() string {
	return strconv.Itoa(int(v))
}

func parseProtocolVersion(s string) (ProtocolVersion, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, strconv.ErrRange
	}
	return ProtocolVersion(n), nil
}

// versioned is implemented by every tag and playlist.
type versioned interface {
	RequiredVersion() ProtocolVersion
}

// maxVersion returns the highest version required by any of vs, or V1.
func maxVersion(vs ...versioned) ProtocolVersion {
	v := V1
	for _, x := range vs {
		if x == nil {
			continue
		}
		if r := x.RequiredVersion(); r > v {
			v = r
		}
	}
	return v
}

// atLeast is a versioned constant, used for features that are not tags of
// their own (flags, attribute combinations).
type atLeast ProtocolVersion

func (a atLeast) RequiredVersion() ProtocolVersion {
	return ProtocolVersion(a)
}
