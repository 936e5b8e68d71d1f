package hls

import (
	"strconv"
	"strings"
	"time"
)

// ExtM3U is the #EXTM3U header that starts every playlist.
type ExtM3U struct{}

func (ExtM3U) tag()                             {}
func (ExtM3U) Validate() error                  { return nil }
func (ExtM3U) RequiredVersion() ProtocolVersion { return V1 }
func (ExtM3U) String() string                   { return "#" + nameM3U }

// ExtXVersion is EXT-X-VERSION.
type ExtXVersion struct {
	Version ProtocolVersion
}

func (ExtXVersion) tag() {}

// Validate implements Tag.
func (t ExtXVersion) Validate() error {
	if t.Version < V1 {
		return invalidInput("%s must be at least 1", nameVersion)
	}
	return nil
}

func (ExtXVersion) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXVersion) String() string {
	return "#" + nameVersion + ":" + t.Version.String()
}

func parseVersionTag(params string, hasParams bool) (ExtXVersion, error) {
	if err := needParams(nameVersion, params, hasParams); err != nil {
		return ExtXVersion{}, err
	}
	v, err := parseProtocolVersion(params)
	if err != nil {
		return ExtXVersion{}, invalidValue(nameVersion, err)
	}
	return ExtXVersion{Version: v}, nil
}

// ExtXTargetDuration is EXT-X-TARGETDURATION, a whole number of seconds.
type ExtXTargetDuration struct {
	Duration time.Duration
}

func (ExtXTargetDuration) tag() {}

// Validate implements Tag.
func (t ExtXTargetDuration) Validate() error {
	if t.Duration < 0 || t.Duration%time.Second != 0 {
		return invalidInput("%s must be a non-negative whole number of seconds, got %v", nameTargetDuration, t.Duration)
	}
	return nil
}

func (ExtXTargetDuration) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXTargetDuration) String() string {
	return "#" + nameTargetDuration + ":" + formatDecimalInteger(uint64(t.Duration/time.Second))
}

func parseTargetDuration(params string, hasParams bool) (ExtXTargetDuration, error) {
	if err := needParams(nameTargetDuration, params, hasParams); err != nil {
		return ExtXTargetDuration{}, err
	}
	n, err := parseDecimalInteger(params)
	if err != nil {
		return ExtXTargetDuration{}, invalidValue(nameTargetDuration, err)
	}
	if n > maxWholeSeconds {
		return ExtXTargetDuration{}, invalidValue(nameTargetDuration, strconv.ErrRange)
	}
	return ExtXTargetDuration{Duration: time.Duration(n) * time.Second}, nil
}

// ExtXMediaSequence is EXT-X-MEDIA-SEQUENCE.
type ExtXMediaSequence struct {
	Sequence uint64
}

func (ExtXMediaSequence) tag()                             {}
func (ExtXMediaSequence) Validate() error                  { return nil }
func (ExtXMediaSequence) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXMediaSequence) String() string {
	return "#" + nameMediaSequence + ":" + formatDecimalInteger(t.Sequence)
}

func parseMediaSequence(params string, hasParams bool) (ExtXMediaSequence, error) {
	if err := needParams(nameMediaSequence, params, hasParams); err != nil {
		return ExtXMediaSequence{}, err
	}
	n, err := parseDecimalInteger(params)
	if err != nil {
		return ExtXMediaSequence{}, invalidValue(nameMediaSequence, err)
	}
	return ExtXMediaSequence{Sequence: n}, nil
}

// ExtXDiscontinuitySequence is EXT-X-DISCONTINUITY-SEQUENCE.
type ExtXDiscontinuitySequence struct {
	Sequence uint64
}

func (ExtXDiscontinuitySequence) tag()                             {}
func (ExtXDiscontinuitySequence) Validate() error                  { return nil }
func (ExtXDiscontinuitySequence) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXDiscontinuitySequence) String() string {
	return "#" + nameDiscontinuitySequence + ":" + formatDecimalInteger(t.Sequence)
}

func parseDiscontinuitySequence(params string, hasParams bool) (ExtXDiscontinuitySequence, error) {
	if err := needParams(nameDiscontinuitySequence, params, hasParams); err != nil {
		return ExtXDiscontinuitySequence{}, err
	}
	n, err := parseDecimalInteger(params)
	if err != nil {
		return ExtXDiscontinuitySequence{}, invalidValue(nameDiscontinuitySequence, err)
	}
	return ExtXDiscontinuitySequence{Sequence: n}, nil
}

// ExtXEndList is EXT-X-ENDLIST.
type ExtXEndList struct{}

func (ExtXEndList) tag()                             {}
func (ExtXEndList) Validate() error                  { return nil }
func (ExtXEndList) RequiredVersion() ProtocolVersion { return V1 }
func (ExtXEndList) String() string                   { return "#" + nameEndList }

// ExtXPlaylistType is EXT-X-PLAYLIST-TYPE.
type ExtXPlaylistType struct {
	Type PlaylistType
}

func (ExtXPlaylistType) tag() {}

// Validate implements Tag.
func (t ExtXPlaylistType) Validate() error {
	if _, err := parsePlaylistType(string(t.Type)); err != nil {
		return invalidValue(namePlaylistType, err)
	}
	return nil
}

func (ExtXPlaylistType) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXPlaylistType) String() string {
	return "#" + namePlaylistType + ":" + string(t.Type)
}

func parsePlaylistTypeTag(params string, hasParams bool) (ExtXPlaylistType, error) {
	if err := needParams(namePlaylistType, params, hasParams); err != nil {
		return ExtXPlaylistType{}, err
	}
	pt, err := parsePlaylistType(params)
	if err != nil {
		return ExtXPlaylistType{}, invalidValue(namePlaylistType, err)
	}
	return ExtXPlaylistType{Type: pt}, nil
}

// ExtXIFramesOnly is EXT-X-I-FRAMES-ONLY.
type ExtXIFramesOnly struct{}

func (ExtXIFramesOnly) tag()                             {}
func (ExtXIFramesOnly) Validate() error                  { return nil }
func (ExtXIFramesOnly) RequiredVersion() ProtocolVersion { return V4 }
func (ExtXIFramesOnly) String() string                   { return "#" + nameIFramesOnly }

// ExtXIndependentSegments is EXT-X-INDEPENDENT-SEGMENTS.
type ExtXIndependentSegments struct{}

func (ExtXIndependentSegments) tag()                             {}
func (ExtXIndependentSegments) Validate() error                  { return nil }
func (ExtXIndependentSegments) RequiredVersion() ProtocolVersion { return V1 }
func (ExtXIndependentSegments) String() string                   { return "#" + nameIndependentSegments }

// ExtXStart is EXT-X-START. TimeOffset is in seconds and may be negative,
// counting from the end of the playlist.
type ExtXStart struct {
	TimeOffset float64
	Precise    bool
}

func (ExtXStart) tag()                             {}
func (ExtXStart) Validate() error                  { return nil }
func (ExtXStart) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXStart) String() string {
	var b strings.Builder
	b.WriteString("#" + nameStart + ":TIME-OFFSET=")
	b.WriteString(formatFloat(t.TimeOffset))
	if t.Precise {
		b.WriteString(",PRECISE=YES")
	}
	return b.String()
}

func parseStart(params string, hasParams bool) (ExtXStart, error) {
	pairs, err := attributes(nameStart, params, hasParams)
	if err != nil {
		return ExtXStart{}, err
	}
	var (
		t         ExtXStart
		hasOffset bool
	)
	for _, p := range pairs {
		switch p.Name {
		case "TIME-OFFSET":
			if t.TimeOffset, err = parseSignedFloat(p.Value); err != nil {
				return ExtXStart{}, invalidValue(p.Name, err)
			}
			hasOffset = true
		case "PRECISE":
			if t.Precise, err = parseYesNo(p.Value); err != nil {
				return ExtXStart{}, invalidValue(p.Name, err)
			}
		}
	}
	if !hasOffset {
		return ExtXStart{}, missingAttribute("TIME-OFFSET")
	}
	return t, nil
}
