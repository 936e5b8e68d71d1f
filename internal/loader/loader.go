// Package loader reads playlist documents from files or stdin and decodes them.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

// Stdin is the source name that selects standard input.
const Stdin = "-"

// Document is a decoded playlist together with the text it came from.
type Document struct {
	// Source is the file path, or "-" for stdin.
	Source string

	// Text is the raw playlist text
	Text string

	// Playlist is either *hls.MediaPlaylist or *hls.MasterPlaylist
	Playlist hls.Playlist
}

// Summary describes a decoded playlist.
type Summary struct {
	// IsMaster indicates whether this is a master playlist
	IsMaster bool

	Version hls.ProtocolVersion

	// Segments and TargetDuration are only populated for media playlists
	Segments       int
	TargetDuration time.Duration
	Duration       time.Duration
	EndList        bool

	// Variants, IFrameVariants and Renditions are only populated for master playlists
	Variants       int
	IFrameVariants int
	Renditions     int
}

// Loader reads and decodes playlists.
type Loader struct {
	stdin  io.Reader
	opts   []hls.Option
	logger *slog.Logger
}

// New creates a loader. stdin is read for the "-" source.
func New(stdin io.Reader, logger *slog.Logger, opts ...hls.Option) *Loader {
	return &Loader{
		stdin:  stdin,
		opts:   append([]hls.Option{hls.WithLogger(logger)}, opts...),
		logger: logger,
	}
}

// Load reads the named source and decodes it.
func (l *Loader) Load(source string) (*Document, error) {
	text, err := l.read(source)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("read playlist", "source", source, "bytes", len(text))

	playlist, err := hls.Parse(text, l.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", source, err)
	}

	return &Document{
		Source:   source,
		Text:     text,
		Playlist: playlist,
	}, nil
}

func (l *Loader) read(source string) (string, error) {
	if source == Stdin {
		data, err := io.ReadAll(l.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	return string(data), nil
}

// Summarize reports the shape of a decoded playlist.
func Summarize(p hls.Playlist) Summary {
	s := Summary{Version: p.RequiredVersion()}

	switch p := p.(type) {
	case *hls.MediaPlaylist:
		s.Segments = len(p.Segments())
		s.TargetDuration = p.TargetDuration()
		s.Duration = p.Duration()
		s.EndList = p.EndList()
	case *hls.MasterPlaylist:
		s.IsMaster = true
		s.Variants = len(p.Variants())
		s.IFrameVariants = len(p.IFrameVariants())
		s.Renditions = len(p.Media())
	}

	return s
}

// Resolve resolves a URI from the document against the document's source.
// URIs from stdin and absolute URLs are returned unchanged.
func (d *Document) Resolve(uri string) (string, error) {
	if d.Source == Stdin {
		return uri, nil
	}

	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI %q: %w", uri, err)
	}
	if ref.IsAbs() {
		return uri, nil
	}

	path, err := filepath.Abs(d.Source)
	if err != nil {
		return "", fmt.Errorf("failed to resolve playlist path: %w", err)
	}
	resolved := (&url.URL{Path: filepath.ToSlash(path)}).ResolveReference(ref)
	if resolved.RawQuery == "" && resolved.Fragment == "" {
		return filepath.FromSlash(resolved.Path), nil
	}
	return resolved.String(), nil
}

// Absolute returns the playlist with every relative URI resolved against the
// document's source. The playlist is rebuilt with the given allowable excess.
func (d *Document) Absolute(excess time.Duration) (hls.Playlist, error) {
	if d.Source == Stdin {
		return d.Playlist, nil
	}

	switch p := d.Playlist.(type) {
	case *hls.MediaPlaylist:
		b := p.ToBuilder()
		b.AllowableExcessDuration = excess
		for i := range b.Segments {
			s := &b.Segments[i]
			uris := []*string{&s.URI}
			if s.Map != nil {
				uris = append(uris, &s.Map.URI)
				uris = append(uris, keyURIs(s.Map.Keys)...)
			}
			uris = append(uris, keyURIs(s.Keys)...)
			if err := d.resolveAll(uris); err != nil {
				return nil, err
			}
		}

		media, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild playlist: %w", err)
		}
		return media, nil

	case *hls.MasterPlaylist:
		b := p.ToBuilder()
		var uris []*string
		for i := range b.Media {
			uris = append(uris, &b.Media[i].URI)
		}
		for i := range b.Variants {
			uris = append(uris, &b.Variants[i].URI)
		}
		for i := range b.IFrameVariants {
			uris = append(uris, &b.IFrameVariants[i].URI)
		}
		for i := range b.SessionData {
			uris = append(uris, &b.SessionData[i].URI)
		}
		for i := range b.SessionKeys {
			uris = append(uris, &b.SessionKeys[i].URI)
		}
		if err := d.resolveAll(uris); err != nil {
			return nil, err
		}

		master, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild playlist: %w", err)
		}
		return master, nil
	}

	return d.Playlist, nil
}

func (d *Document) resolveAll(uris []*string) error {
	for _, uri := range uris {
		if *uri == "" {
			continue
		}
		resolved, err := d.Resolve(*uri)
		if err != nil {
			return err
		}
		*uri = resolved
	}
	return nil
}

func keyURIs(keys []hls.ExtXKey) []*string {
	uris := make([]*string, 0, len(keys))
	for i := range keys {
		uris = append(uris, &keys[i].URI)
	}
	return uris
}
