package hls

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// MediaPlaylistBuilder is a media playlist under construction. Fill in the
// fields and call Build.
type MediaPlaylistBuilder struct {
	TargetDuration        *ExtXTargetDuration
	MediaSequence         *ExtXMediaSequence
	DiscontinuitySequence *ExtXDiscontinuitySequence
	PlaylistType          *ExtXPlaylistType
	IFramesOnly           bool
	IndependentSegments   bool
	Start                 *ExtXStart
	EndList               bool
	Segments              []MediaSegment

	// AllowableExcessDuration is how far a segment's duration, rounded to
	// whole seconds, may exceed the target duration.
	AllowableExcessDuration time.Duration
}

// Build validates the draft and returns an immutable playlist.
func (b MediaPlaylistBuilder) Build() (*MediaPlaylist, error) {
	if b.TargetDuration == nil {
		return nil, invalidInput("%s is required", nameTargetDuration)
	}
	tags := []Tag{*b.TargetDuration}
	if b.PlaylistType != nil {
		tags = append(tags, *b.PlaylistType)
	}
	if b.Start != nil {
		tags = append(tags, *b.Start)
	}
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if b.AllowableExcessDuration < 0 {
		return nil, invalidInput("allowable excess duration must not be negative")
	}

	target := b.TargetDuration.Duration
	limit := target + b.AllowableExcessDuration
	lastRangeURI := ""
	for _, s := range b.Segments {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if actual := roundToSecond(s.Inf.Duration); actual > limit {
			return nil, custom("segment duration too large: actual=%s, max=%s, target_duration=%s, uri=%s",
				actual, limit, target, s.URI)
		}

		if s.ByteRange == nil {
			lastRangeURI = ""
			continue
		}
		if s.ByteRange.Range.Start == nil {
			if lastRangeURI == "" {
				return nil, invalidInput("%s for %q has no offset and no preceding range", nameByteRange, s.URI)
			}
			if lastRangeURI != s.URI {
				return nil, invalidInput("%s for %q has no offset but the preceding range is for %q",
					nameByteRange, s.URI, lastRangeURI)
			}
		}
		lastRangeURI = s.URI
	}

	segments := cloneSegments(b.Segments)
	if err := settleKeys(segments); err != nil {
		return nil, err
	}

	if b.DiscontinuitySequence != nil {
		if len(b.Segments) == 0 {
			return nil, invalidInput("%s requires at least one segment", nameDiscontinuitySequence)
		}
		if b.Segments[0].Discontinuity {
			return nil, invalidInput("%s must precede every %s", nameDiscontinuitySequence, nameDiscontinuity)
		}
	}

	p := &MediaPlaylist{
		targetDuration:      *b.TargetDuration,
		iFramesOnly:         b.IFramesOnly,
		independentSegments: b.IndependentSegments,
		endList:             b.EndList,
		segments:            segments,
	}
	if b.MediaSequence != nil {
		v := *b.MediaSequence
		p.mediaSequence = &v
	}
	if b.DiscontinuitySequence != nil {
		v := *b.DiscontinuitySequence
		p.discontinuitySequence = &v
	}
	if b.PlaylistType != nil {
		v := *b.PlaylistType
		p.playlistType = &v
	}
	if b.Start != nil {
		v := *b.Start
		p.start = &v
	}
	return p, nil
}

// MediaPlaylist is a validated media playlist. Its accessors return copies.
type MediaPlaylist struct {
	targetDuration        ExtXTargetDuration
	mediaSequence         *ExtXMediaSequence
	discontinuitySequence *ExtXDiscontinuitySequence
	playlistType          *ExtXPlaylistType
	iFramesOnly           bool
	independentSegments   bool
	start                 *ExtXStart
	endList               bool
	segments              []MediaSegment
}

func (*MediaPlaylist) playlist() {}

// TargetDuration is the maximum segment duration.
func (p *MediaPlaylist) TargetDuration() time.Duration {
	return p.targetDuration.Duration
}

// MediaSequence returns the sequence number of the first segment, if set.
func (p *MediaPlaylist) MediaSequence() (uint64, bool) {
	if p.mediaSequence == nil {
		return 0, false
	}
	return p.mediaSequence.Sequence, true
}

// DiscontinuitySequence returns the discontinuity sequence number, if set.
func (p *MediaPlaylist) DiscontinuitySequence() (uint64, bool) {
	if p.discontinuitySequence == nil {
		return 0, false
	}
	return p.discontinuitySequence.Sequence, true
}

// PlaylistType returns EVENT or VOD, if set.
func (p *MediaPlaylist) PlaylistType() (PlaylistType, bool) {
	if p.playlistType == nil {
		return "", false
	}
	return p.playlistType.Type, true
}

// IFramesOnly reports whether each segment is a single I-frame.
func (p *MediaPlaylist) IFramesOnly() bool { return p.iFramesOnly }

// IndependentSegments reports whether every segment decodes without the ones before it.
func (p *MediaPlaylist) IndependentSegments() bool { return p.independentSegments }

// EndList reports whether no more segments will be added.
func (p *MediaPlaylist) EndList() bool { return p.endList }

// Start returns the preferred start point, if set.
func (p *MediaPlaylist) Start() (ExtXStart, bool) {
	if p.start == nil {
		return ExtXStart{}, false
	}
	return *p.start, true
}

// Segments returns a copy of the segments in playlist order.
func (p *MediaPlaylist) Segments() []MediaSegment {
	return cloneSegments(p.segments)
}

// Duration is the sum of all segment durations.
func (p *MediaPlaylist) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.segments {
		d += s.Inf.Duration
	}
	return d
}

// ToBuilder returns a draft holding a copy of p, for deriving a new playlist.
func (p *MediaPlaylist) ToBuilder() MediaPlaylistBuilder {
	target := p.targetDuration
	b := MediaPlaylistBuilder{
		TargetDuration:      &target,
		IFramesOnly:         p.iFramesOnly,
		IndependentSegments: p.independentSegments,
		EndList:             p.endList,
		Segments:            p.Segments(),
	}
	if p.mediaSequence != nil {
		v := *p.mediaSequence
		b.MediaSequence = &v
	}
	if p.discontinuitySequence != nil {
		v := *p.discontinuitySequence
		b.DiscontinuitySequence = &v
	}
	if p.playlistType != nil {
		v := *p.playlistType
		b.PlaylistType = &v
	}
	if p.start != nil {
		v := *p.start
		b.Start = &v
	}
	return b
}

// RequiredVersion implements Playlist.
func (p *MediaPlaylist) RequiredVersion() ProtocolVersion {
	vs := []versioned{p.targetDuration}
	if p.mediaSequence != nil {
		vs = append(vs, *p.mediaSequence)
	}
	if p.discontinuitySequence != nil {
		vs = append(vs, *p.discontinuitySequence)
	}
	if p.playlistType != nil {
		vs = append(vs, *p.playlistType)
	}
	if p.iFramesOnly {
		vs = append(vs, ExtXIFramesOnly{})
	}
	if p.start != nil {
		vs = append(vs, *p.start)
	}
	for _, s := range p.segments {
		vs = append(vs, atLeast(s.requiredVersion(p.iFramesOnly)))
	}
	return maxVersion(vs...)
}

// String implements Playlist.
func (p *MediaPlaylist) String() string {
	var b strings.Builder
	writeLine(&b, ExtM3U{}.String())
	if v := p.RequiredVersion(); v > V1 {
		writeLine(&b, ExtXVersion{Version: v}.String())
	}
	writeLine(&b, p.targetDuration.String())
	if p.mediaSequence != nil {
		writeLine(&b, p.mediaSequence.String())
	}
	if p.playlistType != nil {
		writeLine(&b, p.playlistType.String())
	}
	if p.iFramesOnly {
		writeLine(&b, ExtXIFramesOnly{}.String())
	}
	if p.independentSegments {
		writeLine(&b, ExtXIndependentSegments{}.String())
	}
	if p.start != nil {
		writeLine(&b, p.start.String())
	}

	var active keyRing
	for i, s := range p.segments {
		active = s.write(&b, active)
		// The sequence number is only accepted once a segment has been read.
		if i == 0 && p.discontinuitySequence != nil {
			writeLine(&b, p.discontinuitySequence.String())
		}
	}
	if p.endList {
		writeLine(&b, ExtXEndList{}.String())
	}
	return b.String()
}

// WriteTo implements io.WriterTo.
func (p *MediaPlaylist) WriteTo(w io.Writer) (int64, error) {
	return writeTo(w, p)
}

func cloneSegments(segments []MediaSegment) []MediaSegment {
	if segments == nil {
		return nil
	}
	out := make([]MediaSegment, len(segments))
	for i, s := range segments {
		out[i] = s.clone()
	}
	return out
}

// mediaAssembler folds the lines of one media playlist into a builder.
type mediaAssembler struct {
	logger *slog.Logger

	b        MediaPlaylistBuilder
	started  bool
	versions []ExtXVersion

	pending          MediaSegment
	hasInf           bool
	inProgress       bool
	keys             keyRing
	sawDiscontinuity bool
}

func decodeMedia(s *LineScanner, o options) (*MediaPlaylist, error) {
	a := &mediaAssembler{
		logger: o.logger,
		b:      MediaPlaylistBuilder{AllowableExcessDuration: o.excess},
	}
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

func (a *mediaAssembler) feed(l Line) error {
	if !a.started {
		a.started = true
		if _, ok := l.Tag.(ExtM3U); !ok {
			return invalidInput("playlist must start with #%s", nameM3U)
		}
		return nil
	}
	if l.Tag == nil {
		return a.finalize(l.URI)
	}

	switch t := l.Tag.(type) {
	case ExtM3U:
		return invalidInput("#%s may only appear on the first line", nameM3U)
	case ExtXVersion:
		a.versions = append(a.versions, t)
	case Unknown:
		a.logger.Debug("ignoring unknown tag", "name", t.Name, "line", l.Number)

	case ExtInf:
		a.pending.Inf = t
		a.hasInf = true
		a.inProgress = true
	case ExtXByteRange:
		a.pending.ByteRange = &t
		a.inProgress = true
	case ExtXDiscontinuity:
		a.pending.Discontinuity = true
		a.sawDiscontinuity = true
		a.inProgress = true
	case ExtXKey:
		a.keys = a.keys.apply(t)
		a.inProgress = true
	case ExtXMap:
		t.Keys = a.keys.keys()
		a.pending.Map = &t
		a.inProgress = true
	case ExtXProgramDateTime:
		a.pending.ProgramDateTime = &t
		a.inProgress = true
	case ExtXDateRange:
		a.pending.DateRange = &t
		a.inProgress = true

	case ExtXTargetDuration:
		a.b.TargetDuration = &t
	case ExtXMediaSequence:
		a.b.MediaSequence = &t
	case ExtXDiscontinuitySequence:
		if len(a.b.Segments) == 0 {
			return invalidInput("%s must follow at least one segment", nameDiscontinuitySequence)
		}
		if a.sawDiscontinuity {
			return invalidInput("%s must precede every %s", nameDiscontinuitySequence, nameDiscontinuity)
		}
		a.b.DiscontinuitySequence = &t
	case ExtXEndList:
		a.b.EndList = true
	case ExtXPlaylistType:
		a.b.PlaylistType = &t
	case ExtXIFramesOnly:
		a.b.IFramesOnly = true
	case ExtXIndependentSegments:
		a.b.IndependentSegments = true
	case ExtXStart:
		a.b.Start = &t

	default:
		return unexpectedTag(t)
	}
	return nil
}

// finalize ends the pending segment at its URI line.
func (a *mediaAssembler) finalize(uri string) error {
	if !a.hasInf {
		return invalidInput("segment %q has no #%s", uri, nameInf)
	}
	a.pending.URI = uri
	a.pending.Keys = a.keys.keys()
	a.b.Segments = append(a.b.Segments, a.pending)

	a.pending = MediaSegment{}
	a.hasInf = false
	a.inProgress = false
	return nil
}

func (a *mediaAssembler) finish() (*MediaPlaylist, error) {
	if !a.started {
		return nil, invalidInput("empty playlist")
	}
	if a.inProgress {
		return nil, invalidInput("last segment has no URI")
	}
	return a.b.Build()
}
