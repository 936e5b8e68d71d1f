package hls

import (
	"strings"
	"time"

	"github.com/agleyzer/hlsplaylist/internal/attribute"
)

// ExtInf is EXTINF: the duration and optional title of the next segment.
type ExtInf struct {
	Duration time.Duration
	Title    string
}

func (ExtInf) tag() {}

// Validate implements Tag.
func (t ExtInf) Validate() error {
	if t.Duration < 0 {
		return invalidInput("%s duration must not be negative", nameInf)
	}
	if strings.ContainsAny(t.Title, "\r\n") {
		return invalidInput("%s title must be a single line", nameInf)
	}
	return nil
}

// RequiredVersion implements Tag. Integer durations are valid at V1;
// decimal-floating-point durations need V3.
func (t ExtInf) RequiredVersion() ProtocolVersion {
	if t.Duration%time.Second != 0 {
		return V3
	}
	return V1
}

func (t ExtInf) String() string {
	return "#" + nameInf + ":" + formatSeconds(t.Duration) + "," + t.Title
}

func parseInf(params string, hasParams bool) (ExtInf, error) {
	if err := needParams(nameInf, params, hasParams); err != nil {
		return ExtInf{}, err
	}
	duration, title, _ := strings.Cut(params, ",")
	d, err := parseSeconds(strings.TrimSpace(duration))
	if err != nil {
		return ExtInf{}, invalidValue(nameInf, err)
	}
	return ExtInf{Duration: d, Title: title}, nil
}

// ExtXByteRange is EXT-X-BYTERANGE.
type ExtXByteRange struct {
	Range ByteRange
}

func (ExtXByteRange) tag()                             {}
func (ExtXByteRange) Validate() error                  { return nil }
func (ExtXByteRange) RequiredVersion() ProtocolVersion { return V4 }

func (t ExtXByteRange) String() string {
	return "#" + nameByteRange + ":" + t.Range.String()
}

func parseByteRangeTag(params string, hasParams bool) (ExtXByteRange, error) {
	if err := needParams(nameByteRange, params, hasParams); err != nil {
		return ExtXByteRange{}, err
	}
	r, err := ParseByteRange(params)
	if err != nil {
		return ExtXByteRange{}, invalidValue(nameByteRange, err)
	}
	return ExtXByteRange{Range: r}, nil
}

// ExtXDiscontinuity is EXT-X-DISCONTINUITY.
type ExtXDiscontinuity struct{}

func (ExtXDiscontinuity) tag()                             {}
func (ExtXDiscontinuity) Validate() error                  { return nil }
func (ExtXDiscontinuity) RequiredVersion() ProtocolVersion { return V1 }
func (ExtXDiscontinuity) String() string                   { return "#" + nameDiscontinuity }

// ExtXMap is EXT-X-MAP, the media initialization section of the segments
// that follow it. Keys holds the decryption keys that were active when the
// tag was read; it is not part of the directive's text.
type ExtXMap struct {
	URI   string
	Range *ByteRange
	Keys  []ExtXKey
}

func (ExtXMap) tag() {}

// Validate implements Tag.
func (t ExtXMap) Validate() error {
	if t.URI == "" {
		return missingAttribute("URI")
	}
	for _, k := range t.Keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (ExtXMap) RequiredVersion() ProtocolVersion { return V6 }

func (t ExtXMap) String() string {
	s := "#" + nameMap + ":URI=" + attribute.Quote(t.URI)
	if t.Range != nil {
		s += ",BYTERANGE=" + attribute.Quote(t.Range.String())
	}
	return s
}

func parseMap(params string, hasParams bool) (ExtXMap, error) {
	pairs, err := attributes(nameMap, params, hasParams)
	if err != nil {
		return ExtXMap{}, err
	}
	var t ExtXMap
	for _, p := range pairs {
		switch p.Name {
		case "URI":
			if t.URI, err = quoted(p); err != nil {
				return ExtXMap{}, err
			}
		case "BYTERANGE":
			v, err := quoted(p)
			if err != nil {
				return ExtXMap{}, err
			}
			r, err := ParseByteRange(v)
			if err != nil {
				return ExtXMap{}, invalidValue(p.Name, err)
			}
			t.Range = &r
		}
	}
	return t, nil
}

// ExtXProgramDateTime is EXT-X-PROGRAM-DATE-TIME.
type ExtXProgramDateTime struct {
	Time time.Time
}

func (ExtXProgramDateTime) tag()                             {}
func (ExtXProgramDateTime) Validate() error                  { return nil }
func (ExtXProgramDateTime) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXProgramDateTime) String() string {
	return "#" + nameProgramDateTime + ":" + formatDateTime(t.Time)
}

func parseProgramDateTime(params string, hasParams bool) (ExtXProgramDateTime, error) {
	if err := needParams(nameProgramDateTime, params, hasParams); err != nil {
		return ExtXProgramDateTime{}, err
	}
	ts, err := parseDateTime(params)
	if err != nil {
		return ExtXProgramDateTime{}, invalidValue(nameProgramDateTime, err)
	}
	return ExtXProgramDateTime{Time: ts}, nil
}
