package hls

import (
	"strings"

	"github.com/agleyzer/hlsplaylist/internal/attribute"
)

// Tag is one decoded directive. The set of implementations is closed; use a
// type switch to inspect a Tag.
type Tag interface {
	// Validate checks the tag's own attribute rules. Parsed tags always pass.
	Validate() error
	// RequiredVersion is the minimum protocol version this tag forces.
	RequiredVersion() ProtocolVersion
	// String renders the directive line without a trailing newline.
	String() string

	tag()
}

// Directive names.
const (
	nameM3U                   = "EXTM3U"
	nameVersion               = "EXT-X-VERSION"
	nameInf                   = "EXTINF"
	nameByteRange             = "EXT-X-BYTERANGE"
	nameDiscontinuity         = "EXT-X-DISCONTINUITY"
	nameKey                   = "EXT-X-KEY"
	nameMap                   = "EXT-X-MAP"
	nameProgramDateTime       = "EXT-X-PROGRAM-DATE-TIME"
	nameDateRange             = "EXT-X-DATERANGE"
	nameTargetDuration        = "EXT-X-TARGETDURATION"
	nameMediaSequence         = "EXT-X-MEDIA-SEQUENCE"
	nameDiscontinuitySequence = "EXT-X-DISCONTINUITY-SEQUENCE"
	nameEndList               = "EXT-X-ENDLIST"
	namePlaylistType          = "EXT-X-PLAYLIST-TYPE"
	nameIFramesOnly           = "EXT-X-I-FRAMES-ONLY"
	nameIndependentSegments   = "EXT-X-INDEPENDENT-SEGMENTS"
	nameStart                 = "EXT-X-START"
	nameMedia                 = "EXT-X-MEDIA"
	nameStreamInf             = "EXT-X-STREAM-INF"
	nameIFrameStreamInf       = "EXT-X-I-FRAME-STREAM-INF"
	nameSessionData           = "EXT-X-SESSION-DATA"
	nameSessionKey            = "EXT-X-SESSION-KEY"
)

const directivePrefix = "#EXT"

// ParseTag decodes a single directive line such as "#EXT-X-VERSION:3".
func ParseTag(line string) (Tag, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, directivePrefix) || len(line) == len(directivePrefix) {
		return nil, invalidInput("%q is not a directive", line)
	}
	name, params, hasParams := strings.Cut(line[1:], ":")
	return parseTag(name, params, hasParams)
}

// parseTag maps a directive name to its parser. Names are case-sensitive;
// unrecognized names produce Unknown.
func parseTag(name, params string, hasParams bool) (Tag, error) {
	var (
		t   Tag
		err error
	)
	switch name {
	case nameM3U:
		t, err = ExtM3U{}, noParams(name, hasParams)
	case nameVersion:
		t, err = parseVersionTag(params, hasParams)
	case nameInf:
		t, err = parseInf(params, hasParams)
	case nameByteRange:
		t, err = parseByteRangeTag(params, hasParams)
	case nameDiscontinuity:
		t, err = ExtXDiscontinuity{}, noParams(name, hasParams)
	case nameKey:
		t, err = parseKey(params, hasParams)
	case nameMap:
		t, err = parseMap(params, hasParams)
	case nameProgramDateTime:
		t, err = parseProgramDateTime(params, hasParams)
	case nameDateRange:
		t, err = parseDateRange(params, hasParams)
	case nameTargetDuration:
		t, err = parseTargetDuration(params, hasParams)
	case nameMediaSequence:
		t, err = parseMediaSequence(params, hasParams)
	case nameDiscontinuitySequence:
		t, err = parseDiscontinuitySequence(params, hasParams)
	case nameEndList:
		t, err = ExtXEndList{}, noParams(name, hasParams)
	case namePlaylistType:
		t, err = parsePlaylistTypeTag(params, hasParams)
	case nameIFramesOnly:
		t, err = ExtXIFramesOnly{}, noParams(name, hasParams)
	case nameIndependentSegments:
		t, err = ExtXIndependentSegments{}, noParams(name, hasParams)
	case nameStart:
		t, err = parseStart(params, hasParams)
	case nameMedia:
		t, err = parseMedia(params, hasParams)
	case nameStreamInf:
		t, err = parseStreamInf(params, hasParams)
	case nameIFrameStreamInf:
		t, err = parseIFrameStreamInf(params, hasParams)
	case nameSessionData:
		t, err = parseSessionData(params, hasParams)
	case nameSessionKey:
		t, err = parseSessionKey(params, hasParams)
	default:
		return Unknown{Name: name, Params: params, HasParams: hasParams}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// tagName returns the directive name of t.
func tagName(t Tag) string {
	switch t := t.(type) {
	case ExtM3U:
		return nameM3U
	case ExtXVersion:
		return nameVersion
	case ExtInf:
		return nameInf
	case ExtXByteRange:
		return nameByteRange
	case ExtXDiscontinuity:
		return nameDiscontinuity
	case ExtXKey:
		return nameKey
	case ExtXMap:
		return nameMap
	case ExtXProgramDateTime:
		return nameProgramDateTime
	case ExtXDateRange:
		return nameDateRange
	case ExtXTargetDuration:
		return nameTargetDuration
	case ExtXMediaSequence:
		return nameMediaSequence
	case ExtXDiscontinuitySequence:
		return nameDiscontinuitySequence
	case ExtXEndList:
		return nameEndList
	case ExtXPlaylistType:
		return namePlaylistType
	case ExtXIFramesOnly:
		return nameIFramesOnly
	case ExtXIndependentSegments:
		return nameIndependentSegments
	case ExtXStart:
		return nameStart
	case ExtXMedia:
		return nameMedia
	case ExtXStreamInf:
		return nameStreamInf
	case ExtXIFrameStreamInf:
		return nameIFrameStreamInf
	case ExtXSessionData:
		return nameSessionData
	case ExtXSessionKey:
		return nameSessionKey
	case Unknown:
		return t.Name
	}
	return ""
}

func noParams(name string, hasParams bool) error {
	if hasParams {
		return invalidInput("%s takes no parameters", name)
	}
	return nil
}

func needParams(name, params string, hasParams bool) error {
	if !hasParams || strings.TrimSpace(params) == "" {
		return invalidInput("%s requires a value", name)
	}
	return nil
}

// attributes decodes the attribute list of the named tag.
func attributes(name, params string, hasParams bool) ([]attribute.Pair, error) {
	if err := needParams(name, params, hasParams); err != nil {
		return nil, err
	}
	pairs, err := attribute.Parse(params)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidInput, Name: name, Err: err}
	}
	return pairs, nil
}

// quoted unquotes a quoted-string attribute value.
func quoted(p attribute.Pair) (string, error) {
	v, err := attribute.Unquote(p.Value)
	if err != nil {
		return "", invalidValue(p.Name, err)
	}
	return v, nil
}

// Unknown is a directive this package does not recognize. It is kept
// verbatim.
type Unknown struct {
	Name      string
	Params    string
	HasParams bool
}

func (Unknown) tag() {}

// Validate implements Tag.
func (Unknown) Validate() error { return nil }

// RequiredVersion implements Tag.
func (Unknown) RequiredVersion() ProtocolVersion { return V1 }

func (u Unknown) String() string {
	if !u.HasParams {
		return "#" + u.Name
	}
	return "#" + u.Name + ":" + u.Params
}
