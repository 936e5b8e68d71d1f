// Package hls parses, validates and renders HTTP Live Streaming playlists.
//
// Playlists are read with Parse, ParseMedia or ParseMaster, or assembled from
// a MediaPlaylistBuilder or MasterPlaylistBuilder. Both paths go through the
// same Build validation, and the result is immutable. String renders a
// playlist back to text; parsing the rendered text yields an equal value.
package hls

import (
	"io"
	"log/slog"
	"time"
)

// Playlist is either a *MediaPlaylist or a *MasterPlaylist.
type Playlist interface {
	// RequiredVersion is the lowest protocol version that covers every
	// feature the playlist uses.
	RequiredVersion() ProtocolVersion
	// String renders the playlist; every line ends with a newline.
	String() string
	io.WriterTo

	playlist()
}

type options struct {
	excess        time.Duration
	strictVersion bool
	logger        *slog.Logger
}

// Option configures parsing.
type Option func(*options)

// WithAllowableExcessDuration sets how far a segment's rounded duration may
// exceed the target duration. The default is zero.
func WithAllowableExcessDuration(d time.Duration) Option {
	return func(o *options) {
		o.excess = d
	}
}

// WithStrictVersion rejects playlists whose EXT-X-VERSION is lower than the
// version their features require.
func WithStrictVersion() Option {
	return func(o *options) {
		o.strictVersion = true
	}
}

// WithLogger sets the logger that reports ignored directives at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Parse decodes a media or master playlist. The kind is decided by the tags
// present; a document with neither master-only nor media-only tags is read
// as a media playlist.
func Parse(input string, opts ...Option) (Playlist, error) {
	o := newOptions(opts)
	s := NewLineScanner(input)
	master, err := isMaster(s)
	if err != nil {
		return nil, err
	}
	s.Reset()
	if master {
		p, err := decodeMaster(s, o)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := decodeMedia(s, o)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ParseMedia decodes a media playlist.
func ParseMedia(input string, opts ...Option) (*MediaPlaylist, error) {
	return decodeMedia(NewLineScanner(input), newOptions(opts))
}

// ParseMaster decodes a master playlist.
func ParseMaster(input string, opts ...Option) (*MasterPlaylist, error) {
	return decodeMaster(NewLineScanner(input), newOptions(opts))
}

// isMaster scans every line and reports whether the document uses
// master-only tags. Mixing them with media-only tags is an error.
func isMaster(s *LineScanner) (bool, error) {
	var masterLine, mediaLine int
	for s.Scan() {
		l := s.Line()
		switch {
		case l.Tag == nil:
		case isMasterTag(l.Tag):
			if masterLine == 0 {
				masterLine = l.Number
			}
		case isMediaTag(l.Tag):
			if mediaLine == 0 {
				mediaLine = l.Number
			}
		}
		// The current line is the first to complete the mix.
		if masterLine > 0 && mediaLine > 0 {
			return false, atLine(unexpectedTag(l.Tag), l.Number)
		}
	}
	if err := s.Err(); err != nil {
		return false, err
	}
	return masterLine > 0, nil
}

func isMasterTag(t Tag) bool {
	switch t.(type) {
	case ExtXMedia, ExtXStreamInf, ExtXIFrameStreamInf, ExtXSessionData, ExtXSessionKey:
		return true
	}
	return false
}

func isMediaTag(t Tag) bool {
	switch t.(type) {
	case ExtInf, ExtXByteRange, ExtXDiscontinuity, ExtXKey, ExtXMap, ExtXProgramDateTime,
		ExtXDateRange, ExtXTargetDuration, ExtXMediaSequence, ExtXDiscontinuitySequence,
		ExtXEndList, ExtXPlaylistType, ExtXIFramesOnly:
		return true
	}
	return false
}

// checkDeclaredVersions enforces WithStrictVersion.
func checkDeclaredVersions(declared []ExtXVersion, required ProtocolVersion) error {
	for _, v := range declared {
		if v.Version < required {
			return custom("declared version %s is lower than required version %s", v.Version, required)
		}
	}
	return nil
}

func writeTo(w io.Writer, p Playlist) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}
