package hls

import (
	"io"
	"log/slog"
	"strings"
)

// MasterPlaylistBuilder is a master playlist under construction. Fill in the
// fields and call Build.
type MasterPlaylistBuilder struct {
	IndependentSegments bool
	Start               *ExtXStart
	Media               []ExtXMedia
	Variants            []ExtXStreamInf
	IFrameVariants      []ExtXIFrameStreamInf
	SessionData         []ExtXSessionData
	SessionKeys         []ExtXSessionKey
}

type renditionGroup struct {
	typ MediaType
	id  string
}

// Build validates the draft and returns an immutable playlist.
func (b MasterPlaylistBuilder) Build() (*MasterPlaylist, error) {
	if b.Start != nil {
		if err := b.Start.Validate(); err != nil {
			return nil, err
		}
	}

	groups := make(map[renditionGroup]bool)
	defaults := make(map[renditionGroup]bool)
	for _, m := range b.Media {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		g := renditionGroup{typ: m.Type, id: m.GroupID}
		groups[g] = true
		if !m.Default {
			continue
		}
		if defaults[g] {
			return nil, custom("%s group %q has more than one DEFAULT=YES rendition", m.Type, m.GroupID)
		}
		defaults[g] = true
	}

	checkGroup := func(typ MediaType, id, uri string) error {
		if id != "" && !groups[renditionGroup{typ: typ, id: id}] {
			return custom("variant %s references unknown %s group %q", uri, typ, id)
		}
		return nil
	}

	noCaptions := 0
	for _, v := range b.Variants {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if v.URI == "" {
			return nil, invalidInput("#%s has no URI", nameStreamInf)
		}
		if strings.ContainsAny(v.URI, "\r\n") {
			return nil, invalidInput("variant URI %q spans lines", v.URI)
		}
		for _, ref := range []struct {
			typ MediaType
			id  string
		}{
			{MediaTypeAudio, v.Audio},
			{MediaTypeVideo, v.Video},
			{MediaTypeSubtitles, v.Subtitles},
			{MediaTypeClosedCaptions, v.ClosedCaptions},
		} {
			if err := checkGroup(ref.typ, ref.id, v.URI); err != nil {
				return nil, err
			}
		}
		if v.NoClosedCaptions {
			noCaptions++
		}
	}
	if noCaptions > 0 && noCaptions != len(b.Variants) {
		return nil, custom("CLOSED-CAPTIONS=NONE is set on %d of %d variants; it must be set on all or none",
			noCaptions, len(b.Variants))
	}

	for _, v := range b.IFrameVariants {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if err := checkGroup(MediaTypeVideo, v.Video, v.URI); err != nil {
			return nil, err
		}
	}

	type sessionDataKey struct{ id, language string }
	seen := make(map[sessionDataKey]bool)
	for _, d := range b.SessionData {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		k := sessionDataKey{d.DataID, d.Language}
		if seen[k] {
			return nil, custom("duplicate %s DATA-ID=%q LANGUAGE=%q", nameSessionData, d.DataID, d.Language)
		}
		seen[k] = true
	}

	for _, k := range b.SessionKeys {
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}

	p := &MasterPlaylist{
		independentSegments: b.IndependentSegments,
		media:               append([]ExtXMedia(nil), b.Media...),
		variants:            cloneVariants(b.Variants),
		iFrameVariants:      cloneIFrameVariants(b.IFrameVariants),
		sessionData:         append([]ExtXSessionData(nil), b.SessionData...),
		sessionKeys:         cloneSessionKeys(b.SessionKeys),
	}
	if b.Start != nil {
		v := *b.Start
		p.start = &v
	}
	return p, nil
}

// MasterPlaylist is a validated master playlist. Its accessors return copies.
type MasterPlaylist struct {
	independentSegments bool
	start               *ExtXStart
	media               []ExtXMedia
	variants            []ExtXStreamInf
	iFrameVariants      []ExtXIFrameStreamInf
	sessionData         []ExtXSessionData
	sessionKeys         []ExtXSessionKey
}

func (*MasterPlaylist) playlist() {}

// IndependentSegments reports whether every segment of every variant decodes on its own.
func (p *MasterPlaylist) IndependentSegments() bool { return p.independentSegments }

// Start returns the preferred start point, if set.
func (p *MasterPlaylist) Start() (ExtXStart, bool) {
	if p.start == nil {
		return ExtXStart{}, false
	}
	return *p.start, true
}

// Media returns the renditions.
func (p *MasterPlaylist) Media() []ExtXMedia {
	return append([]ExtXMedia(nil), p.media...)
}

// Variants returns the variant streams with their URIs.
func (p *MasterPlaylist) Variants() []ExtXStreamInf {
	return cloneVariants(p.variants)
}

// IFrameVariants returns the I-frame only variant streams.
func (p *MasterPlaylist) IFrameVariants() []ExtXIFrameStreamInf {
	return cloneIFrameVariants(p.iFrameVariants)
}

// SessionData returns the EXT-X-SESSION-DATA entries.
func (p *MasterPlaylist) SessionData() []ExtXSessionData {
	return append([]ExtXSessionData(nil), p.sessionData...)
}

// SessionKeys returns the keys announced for preloading.
func (p *MasterPlaylist) SessionKeys() []ExtXSessionKey {
	return cloneSessionKeys(p.sessionKeys)
}

// ToBuilder returns a draft holding a copy of p.
func (p *MasterPlaylist) ToBuilder() MasterPlaylistBuilder {
	b := MasterPlaylistBuilder{
		IndependentSegments: p.independentSegments,
		Media:               p.Media(),
		Variants:            p.Variants(),
		IFrameVariants:      p.IFrameVariants(),
		SessionData:         p.SessionData(),
		SessionKeys:         p.SessionKeys(),
	}
	if p.start != nil {
		v := *p.start
		b.Start = &v
	}
	return b
}

// RequiredVersion implements Playlist.
func (p *MasterPlaylist) RequiredVersion() ProtocolVersion {
	var vs []versioned
	if p.start != nil {
		vs = append(vs, *p.start)
	}
	for _, t := range p.media {
		vs = append(vs, t)
	}
	for _, t := range p.variants {
		vs = append(vs, t)
	}
	for _, t := range p.iFrameVariants {
		vs = append(vs, t)
	}
	for _, t := range p.sessionData {
		vs = append(vs, t)
	}
	for _, t := range p.sessionKeys {
		vs = append(vs, t)
	}
	return maxVersion(vs...)
}

// String implements Playlist.
func (p *MasterPlaylist) String() string {
	var b strings.Builder
	writeLine(&b, ExtM3U{}.String())
	if v := p.RequiredVersion(); v > V1 {
		writeLine(&b, ExtXVersion{Version: v}.String())
	}
	if p.independentSegments {
		writeLine(&b, ExtXIndependentSegments{}.String())
	}
	if p.start != nil {
		writeLine(&b, p.start.String())
	}
	for _, t := range p.media {
		writeLine(&b, t.String())
	}
	for _, t := range p.variants {
		writeLine(&b, t.String())
		writeLine(&b, t.URI)
	}
	for _, t := range p.iFrameVariants {
		writeLine(&b, t.String())
	}
	for _, t := range p.sessionData {
		writeLine(&b, t.String())
	}
	for _, t := range p.sessionKeys {
		writeLine(&b, t.String())
	}
	return b.String()
}

// WriteTo implements io.WriterTo.
func (p *MasterPlaylist) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, p)
}

func (s StreamData) clone() StreamData {
	if s.AverageBandwidth != nil {
		v := *s.AverageBandwidth
		s.AverageBandwidth = &v
	}
	if s.Resolution != nil {
		v := *s.Resolution
		s.Resolution = &v
	}
	return s
}

func cloneVariants(vs []ExtXStreamInf) []ExtXStreamInf {
	if vs == nil {
		return nil
	}
	out := make([]ExtXStreamInf, len(vs))
	for i, v := range vs {
		v.StreamData = v.StreamData.clone()
		if v.FrameRate != nil {
			f := *v.FrameRate
			v.FrameRate = &f
		}
		out[i] = v
	}
	return out
}

func cloneIFrameVariants(vs []ExtXIFrameStreamInf) []ExtXIFrameStreamInf {
	if vs == nil {
		return nil
	}
	out := make([]ExtXIFrameStreamInf, len(vs))
	for i, v := range vs {
		v.StreamData = v.StreamData.clone()
		out[i] = v
	}
	return out
}

func cloneSessionKeys(ks []ExtXSessionKey) []ExtXSessionKey {
	if ks == nil {
		return nil
	}
	out := make([]ExtXSessionKey, len(ks))
	for i, k := range ks {
		out[i] = ExtXSessionKey{DecryptionKey: k.clone()}
	}
	return out
}

// masterAssembler folds the lines of one master playlist into a builder.
type masterAssembler struct {
	logger *slog.Logger

	b        MasterPlaylistBuilder
	started  bool
	versions []ExtXVersion
	pending  *ExtXStreamInf
}

func decodeMaster(s *LineScanner, o options) (*MasterPlaylist, error) {
	a := &masterAssembler{logger: o.logger}
	for s.Scan() {
		l := s.Line()
		if err := a.feed(l); err != nil {
			return nil, atLine(err, l.Number)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	p, err := a.finish()
	if err != nil {
		return nil, err
	}
	if o.strictVersion {
		if err := checkDeclaredVersions(a.versions, p.RequiredVersion()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (a *masterAssembler) feed(l Line) error {
	if !a.started {
		a.started = true
		if _, ok := l.Tag.(ExtM3U); !ok {
			return invalidInput("playlist must start with #%s", nameM3U)
		}
		return nil
	}
	if l.Tag == nil {
		if a.pending == nil {
			return invalidInput("URI %q does not follow #%s", l.URI, nameStreamInf)
		}
		a.pending.URI = l.URI
		a.b.Variants = append(a.b.Variants, *a.pending)
		a.pending = nil
		return nil
	}

	if u, ok := l.Tag.(Unknown); ok {
		a.logger.Debug("ignoring unknown tag", "name", u.Name, "line", l.Number)
		return nil
	}
	if a.pending != nil {
		return invalidInput("#%s must be followed by its URI, got #%s", nameStreamInf, tagName(l.Tag))
	}

	switch t := l.Tag.(type) {
	case ExtM3U:
		return invalidInput("#%s may only appear on the first line", nameM3U)
	case ExtXVersion:
		a.versions = append(a.versions, t)
	case ExtXIndependentSegments:
		a.b.IndependentSegments = true
	case ExtXStart:
		a.b.Start = &t
	case ExtXMedia:
		a.b.Media = append(a.b.Media, t)
	case ExtXStreamInf:
		a.pending = &t
	case ExtXIFrameStreamInf:
		a.b.IFrameVariants = append(a.b.IFrameVariants, t)
	case ExtXSessionData:
		a.b.SessionData = append(a.b.SessionData, t)
	case ExtXSessionKey:
		a.b.SessionKeys = append(a.b.SessionKeys, t)
	default:
		return unexpectedTag(t)
	}
	return nil
}

func (a *masterAssembler) finish() (*MasterPlaylist, error) {
	if !a.started {
		return nil, invalidInput("empty playlist")
	}
	if a.pending != nil {
		return nil, invalidInput("#%s has no URI", nameStreamInf)
	}
	return a.b.Build()
}
