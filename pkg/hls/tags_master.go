package hls

import (
	"strings"

	"github.com/agleyzer/hlsplaylist/internal/attribute"
)

// ExtXMedia is EXT-X-MEDIA: one rendition in a rendition group.
type ExtXMedia struct {
	Type            MediaType
	URI             string
	GroupID         string
	Language        string
	AssocLanguage   string
	Name            string
	Default         bool
	Autoselect      bool
	Forced          bool
	InStreamID      InStreamID
	Characteristics string
	Channels        string
}

func (ExtXMedia) tag() {}

// Validate implements Tag.
func (t ExtXMedia) Validate() error {
	if t.Type == "" {
		return missingAttribute("TYPE")
	}
	if _, err := parseMediaType(string(t.Type)); err != nil {
		return invalidValue("TYPE", err)
	}
	if t.GroupID == "" {
		return missingAttribute("GROUP-ID")
	}
	if t.Name == "" {
		return missingAttribute("NAME")
	}

	switch t.Type {
	case MediaTypeSubtitles:
		if t.URI == "" {
			return missingAttribute("URI")
		}
	case MediaTypeClosedCaptions:
		if t.URI != "" {
			return unexpectedAttribute("URI")
		}
	}

	if t.Type == MediaTypeClosedCaptions {
		if t.InStreamID == "" {
			return missingAttribute("INSTREAM-ID")
		}
		if _, err := parseInStreamID(string(t.InStreamID)); err != nil {
			return invalidValue("INSTREAM-ID", err)
		}
	} else if t.InStreamID != "" {
		return unexpectedAttribute("INSTREAM-ID")
	}

	if t.Forced && t.Type != MediaTypeSubtitles {
		return unexpectedAttribute("FORCED")
	}
	return nil
}

// RequiredVersion implements Tag. SERVICE channels need V7.
func (t ExtXMedia) RequiredVersion() ProtocolVersion {
	if t.InStreamID.IsService() {
		return V7
	}
	return V1
}

func (t ExtXMedia) String() string {
	var b strings.Builder
	b.WriteString("#" + nameMedia + ":TYPE=" + string(t.Type))
	if t.URI != "" {
		b.WriteString(",URI=" + attribute.Quote(t.URI))
	}
	b.WriteString(",GROUP-ID=" + attribute.Quote(t.GroupID))
	if t.Language != "" {
		b.WriteString(",LANGUAGE=" + attribute.Quote(t.Language))
	}
	if t.AssocLanguage != "" {
		b.WriteString(",ASSOC-LANGUAGE=" + attribute.Quote(t.AssocLanguage))
	}
	b.WriteString(",NAME=" + attribute.Quote(t.Name))
	if t.Default {
		b.WriteString(",DEFAULT=YES")
	}
	if t.Autoselect {
		b.WriteString(",AUTOSELECT=YES")
	}
	if t.Forced {
		b.WriteString(",FORCED=YES")
	}
	if t.InStreamID != "" {
		b.WriteString(",INSTREAM-ID=" + attribute.Quote(string(t.InStreamID)))
	}
	if t.Characteristics != "" {
		b.WriteString(",CHARACTERISTICS=" + attribute.Quote(t.Characteristics))
	}
	if t.Channels != "" {
		b.WriteString(",CHANNELS=" + attribute.Quote(t.Channels))
	}
	return b.String()
}

func parseMedia(params string, hasParams bool) (ExtXMedia, error) {
	pairs, err := attributes(nameMedia, params, hasParams)
	if err != nil {
		return ExtXMedia{}, err
	}
	var (
		t                  ExtXMedia
		autoselectExplicit bool
		forcedExplicit     bool
	)
	for _, p := range pairs {
		switch p.Name {
		case "TYPE":
			if t.Type, err = parseMediaType(p.Value); err != nil {
				return ExtXMedia{}, invalidValue(p.Name, err)
			}
		case "URI":
			t.URI, err = quoted(p)
		case "GROUP-ID":
			t.GroupID, err = quoted(p)
		case "LANGUAGE":
			t.Language, err = quoted(p)
		case "ASSOC-LANGUAGE":
			t.AssocLanguage, err = quoted(p)
		case "NAME":
			t.Name, err = quoted(p)
		case "DEFAULT":
			if t.Default, err = parseYesNo(p.Value); err != nil {
				return ExtXMedia{}, invalidValue(p.Name, err)
			}
		case "AUTOSELECT":
			if t.Autoselect, err = parseYesNo(p.Value); err != nil {
				return ExtXMedia{}, invalidValue(p.Name, err)
			}
			autoselectExplicit = true
		case "FORCED":
			if t.Forced, err = parseYesNo(p.Value); err != nil {
				return ExtXMedia{}, invalidValue(p.Name, err)
			}
			forcedExplicit = true
		case "INSTREAM-ID":
			var v string
			if v, err = quoted(p); err != nil {
				return ExtXMedia{}, err
			}
			if t.InStreamID, err = parseInStreamID(v); err != nil {
				return ExtXMedia{}, invalidValue(p.Name, err)
			}
		case "CHARACTERISTICS":
			t.Characteristics, err = quoted(p)
		case "CHANNELS":
			t.Channels, err = quoted(p)
		}
		if err != nil {
			return ExtXMedia{}, err
		}
	}

	if t.Default && autoselectExplicit && !t.Autoselect {
		return ExtXMedia{}, invalidInput("%s with DEFAULT=YES must not have AUTOSELECT=NO", nameMedia)
	}
	if forcedExplicit && t.Type != MediaTypeSubtitles {
		return ExtXMedia{}, unexpectedAttribute("FORCED")
	}
	return t, nil
}

// StreamData holds the attributes shared by EXT-X-STREAM-INF and
// EXT-X-I-FRAME-STREAM-INF.
type StreamData struct {
	Bandwidth        uint64
	AverageBandwidth *uint64
	Codecs           string
	Resolution       *Resolution
	HDCPLevel        HDCPLevel
	Video            string
}

func (s StreamData) validate() error {
	if s.Bandwidth == 0 {
		return missingAttribute("BANDWIDTH")
	}
	if s.HDCPLevel != "" {
		if _, err := parseHDCPLevel(string(s.HDCPLevel)); err != nil {
			return invalidValue("HDCP-LEVEL", err)
		}
	}
	return nil
}

func (s StreamData) write(b *strings.Builder) {
	b.WriteString("BANDWIDTH=" + formatDecimalInteger(s.Bandwidth))
	if s.AverageBandwidth != nil {
		b.WriteString(",AVERAGE-BANDWIDTH=" + formatDecimalInteger(*s.AverageBandwidth))
	}
	if s.Codecs != "" {
		b.WriteString(",CODECS=" + attribute.Quote(s.Codecs))
	}
	if s.Resolution != nil {
		b.WriteString(",RESOLUTION=" + s.Resolution.String())
	}
	if s.HDCPLevel != "" {
		b.WriteString(",HDCP-LEVEL=" + string(s.HDCPLevel))
	}
	if s.Video != "" {
		b.WriteString(",VIDEO=" + attribute.Quote(s.Video))
	}
}

// decode consumes the shared attributes; it reports whether p was one.
func (s *StreamData) decode(p attribute.Pair) (bool, error) {
	var err error
	switch p.Name {
	case "BANDWIDTH":
		if s.Bandwidth, err = parseDecimalInteger(p.Value); err != nil {
			return true, invalidValue(p.Name, err)
		}
	case "AVERAGE-BANDWIDTH":
		n, err := parseDecimalInteger(p.Value)
		if err != nil {
			return true, invalidValue(p.Name, err)
		}
		s.AverageBandwidth = &n
	case "CODECS":
		if s.Codecs, err = quoted(p); err != nil {
			return true, err
		}
	case "RESOLUTION":
		r, err := ParseResolution(p.Value)
		if err != nil {
			return true, invalidValue(p.Name, err)
		}
		s.Resolution = &r
	case "HDCP-LEVEL":
		if s.HDCPLevel, err = parseHDCPLevel(p.Value); err != nil {
			return true, invalidValue(p.Name, err)
		}
	case "VIDEO":
		if s.Video, err = quoted(p); err != nil {
			return true, err
		}
	default:
		return false, nil
	}
	return true, nil
}

// ExtXStreamInf is EXT-X-STREAM-INF together with the URI line that follows
// it.
type ExtXStreamInf struct {
	StreamData
	URI            string
	FrameRate      *float64
	Audio          string
	Subtitles      string
	ClosedCaptions string
	// NoClosedCaptions renders CLOSED-CAPTIONS=NONE.
	NoClosedCaptions bool
}

func (ExtXStreamInf) tag() {}

// Validate implements Tag. The URI is checked by the playlist, since the
// directive line alone does not carry it.
func (t ExtXStreamInf) Validate() error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.NoClosedCaptions && t.ClosedCaptions != "" {
		return invalidInput("%s CLOSED-CAPTIONS cannot be both NONE and a group", nameStreamInf)
	}
	if t.FrameRate != nil && *t.FrameRate < 0 {
		return invalidValue("FRAME-RATE", errNegative)
	}
	return nil
}

func (ExtXStreamInf) RequiredVersion() ProtocolVersion { return V1 }

// String renders the directive line only; the playlist writes the URI.
func (t ExtXStreamInf) String() string {
	var b strings.Builder
	b.WriteString("#" + nameStreamInf + ":")
	t.write(&b)
	if t.FrameRate != nil {
		b.WriteString(",FRAME-RATE=" + formatFloat(*t.FrameRate))
	}
	if t.Audio != "" {
		b.WriteString(",AUDIO=" + attribute.Quote(t.Audio))
	}
	if t.Subtitles != "" {
		b.WriteString(",SUBTITLES=" + attribute.Quote(t.Subtitles))
	}
	switch {
	case t.NoClosedCaptions:
		b.WriteString(",CLOSED-CAPTIONS=NONE")
	case t.ClosedCaptions != "":
		b.WriteString(",CLOSED-CAPTIONS=" + attribute.Quote(t.ClosedCaptions))
	}
	return b.String()
}

func parseStreamInf(params string, hasParams bool) (ExtXStreamInf, error) {
	pairs, err := attributes(nameStreamInf, params, hasParams)
	if err != nil {
		return ExtXStreamInf{}, err
	}
	var (
		t            ExtXStreamInf
		hasBandwidth bool
	)
	for _, p := range pairs {
		ok, err := t.decode(p)
		if err != nil {
			return ExtXStreamInf{}, err
		}
		if ok {
			hasBandwidth = hasBandwidth || p.Name == "BANDWIDTH"
			continue
		}
		switch p.Name {
		case "FRAME-RATE":
			f, err := parseFloat(p.Value)
			if err != nil {
				return ExtXStreamInf{}, invalidValue(p.Name, err)
			}
			t.FrameRate = &f
		case "AUDIO":
			t.Audio, err = quoted(p)
		case "SUBTITLES":
			t.Subtitles, err = quoted(p)
		case "CLOSED-CAPTIONS":
			if p.Value == "NONE" {
				t.NoClosedCaptions, t.ClosedCaptions = true, ""
			} else {
				t.NoClosedCaptions = false
				t.ClosedCaptions, err = quoted(p)
			}
		}
		if err != nil {
			return ExtXStreamInf{}, err
		}
	}
	if !hasBandwidth {
		return ExtXStreamInf{}, missingAttribute("BANDWIDTH")
	}
	return t, nil
}

// ExtXIFrameStreamInf is EXT-X-I-FRAME-STREAM-INF.
type ExtXIFrameStreamInf struct {
	StreamData
	URI string
}

func (ExtXIFrameStreamInf) tag() {}

// Validate implements Tag.
func (t ExtXIFrameStreamInf) Validate() error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.URI == "" {
		return missingAttribute("URI")
	}
	return nil
}

func (ExtXIFrameStreamInf) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXIFrameStreamInf) String() string {
	var b strings.Builder
	b.WriteString("#" + nameIFrameStreamInf + ":URI=" + attribute.Quote(t.URI) + ",")
	t.write(&b)
	return b.String()
}

func parseIFrameStreamInf(params string, hasParams bool) (ExtXIFrameStreamInf, error) {
	pairs, err := attributes(nameIFrameStreamInf, params, hasParams)
	if err != nil {
		return ExtXIFrameStreamInf{}, err
	}
	var (
		t            ExtXIFrameStreamInf
		hasBandwidth bool
	)
	for _, p := range pairs {
		ok, err := t.decode(p)
		if err != nil {
			return ExtXIFrameStreamInf{}, err
		}
		if ok {
			hasBandwidth = hasBandwidth || p.Name == "BANDWIDTH"
			continue
		}
		if p.Name == "URI" {
			if t.URI, err = quoted(p); err != nil {
				return ExtXIFrameStreamInf{}, err
			}
		}
	}
	if !hasBandwidth {
		return ExtXIFrameStreamInf{}, missingAttribute("BANDWIDTH")
	}
	return t, nil
}

// ExtXSessionData is EXT-X-SESSION-DATA. Exactly one of Value and URI is set.
type ExtXSessionData struct {
	DataID   string
	Value    string
	URI      string
	Language string
}

func (ExtXSessionData) tag() {}

// Validate implements Tag.
func (t ExtXSessionData) Validate() error {
	if t.DataID == "" {
		return missingAttribute("DATA-ID")
	}
	switch {
	case t.Value != "" && t.URI != "":
		return unexpectedAttribute("URI")
	case t.Value == "" && t.URI == "":
		return missingAttribute("VALUE")
	}
	return nil
}

func (ExtXSessionData) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXSessionData) String() string {
	var b strings.Builder
	b.WriteString("#" + nameSessionData + ":DATA-ID=" + attribute.Quote(t.DataID))
	if t.Value != "" {
		b.WriteString(",VALUE=" + attribute.Quote(t.Value))
	}
	if t.URI != "" {
		b.WriteString(",URI=" + attribute.Quote(t.URI))
	}
	if t.Language != "" {
		b.WriteString(",LANGUAGE=" + attribute.Quote(t.Language))
	}
	return b.String()
}

func parseSessionData(params string, hasParams bool) (ExtXSessionData, error) {
	pairs, err := attributes(nameSessionData, params, hasParams)
	if err != nil {
		return ExtXSessionData{}, err
	}
	var t ExtXSessionData
	for _, p := range pairs {
		switch p.Name {
		case "DATA-ID":
			t.DataID, err = quoted(p)
		case "VALUE":
			t.Value, err = quoted(p)
		case "URI":
			t.URI, err = quoted(p)
		case "LANGUAGE":
			t.Language, err = quoted(p)
		}
		if err != nil {
			return ExtXSessionData{}, err
		}
	}
	return t, nil
}
