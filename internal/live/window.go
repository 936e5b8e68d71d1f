// Package live turns a static media playlist into a looping live playlist
// with a sliding window.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

// Window is a sliding window over a looping list of media segments.
// It is safe for concurrent use.
type Window struct {
	mu                    sync.RWMutex
	segments              []hls.MediaSegment
	maps                  []*hls.ExtXMap // map in effect at each segment
	targetDuration        time.Duration
	independentSegments   bool
	windowSize            int
	sequenceNumber        uint64
	discontinuitySequence uint64
	logger                *slog.Logger
}

// Stats describes the current position of a window.
type Stats struct {
	WindowSize            int
	TotalSegments         int
	Position              int
	SequenceNumber        uint64
	DiscontinuitySequence uint64
}

// New creates a window over the segments of source. Byte ranges without an
// offset are resolved to absolute offsets so any segment can start a window.
func New(source *hls.MediaPlaylist, windowSize int, logger *slog.Logger) (*Window, error) {
	segments := source.Segments()
	if len(segments) == 0 {
		return nil, fmt.Errorf("cannot create window with zero segments")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if windowSize > len(segments) {
		windowSize = len(segments)
		logger.Warn("window size larger than segment count, using all segments", "windowSize", windowSize)
	}

	if err := resolveByteRanges(segments); err != nil {
		return nil, err
	}

	// Playlists accepted with an allowable excess can carry segments longer
	// than their target duration; a live playlist may not.
	targetDuration := source.TargetDuration()
	for _, seg := range segments {
		if d := seg.Inf.Duration.Round(time.Second); d > targetDuration {
			targetDuration = d
		}
	}
	if targetDuration != source.TargetDuration() {
		logger.Warn("raising target duration to fit segments",
			"targetDuration", source.TargetDuration(),
			"liveTargetDuration", targetDuration,
		)
	}

	return &Window{
		segments:            segments,
		maps:                effectiveMaps(segments),
		targetDuration:      targetDuration,
		independentSegments: source.IndependentSegments(),
		windowSize:          windowSize,
		logger:              logger,
	}, nil
}

// Snapshot builds the live playlist for the current window.
func (w *Window) Snapshot() (*hls.MediaPlaylist, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	window := make([]hls.MediaSegment, 0, w.windowSize)
	var keys []hls.ExtXKey
	for i := 0; i < w.windowSize; i++ {
		n := w.sequenceNumber + uint64(i)
		idx := w.index(n)
		seg := w.segments[idx]

		// A marker on the first segment has already been counted in the
		// discontinuity sequence.
		seg.Discontinuity = i > 0 && w.discontinuityAt(n)

		if i == 0 && seg.Map == nil && w.maps[idx] != nil {
			seg.Map = w.maps[idx]
		}
		if seg.Map != nil {
			m := *seg.Map
			m.Keys = closeKeys(keys, m.Keys)
			keys = m.Keys
			seg.Map = &m
		}
		seg.Keys = closeKeys(keys, seg.Keys)
		keys = seg.Keys

		window = append(window, seg)
	}

	b := hls.MediaPlaylistBuilder{
		TargetDuration:      &hls.ExtXTargetDuration{Duration: w.targetDuration},
		MediaSequence:       &hls.ExtXMediaSequence{Sequence: w.sequenceNumber},
		IndependentSegments: w.independentSegments,
		Segments:            window,
	}
	if w.discontinuitySequence > 0 {
		b.DiscontinuitySequence = &hls.ExtXDiscontinuitySequence{Sequence: w.discontinuitySequence}
	}

	// NOTE: no EXT-X-ENDLIST, the window never ends
	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build live playlist: %w", err)
	}
	return p, nil
}

// Advance moves the sliding window forward by one segment.
func (w *Window) Advance() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sequenceNumber++
	if w.discontinuityAt(w.sequenceNumber) {
		w.discontinuitySequence++
	}

	w.logger.Debug("advanced window",
		"position", w.index(w.sequenceNumber),
		"sequence", w.sequenceNumber,
		"discontinuitySequence", w.discontinuitySequence,
	)
}

// Run advances the window once per target duration until ctx is done,
// handing each new snapshot to publish. It returns the first error from
// building or publishing a snapshot, and nil once ctx is done.
func (w *Window) Run(ctx context.Context, publish func(*hls.MediaPlaylist) error) error {
	interval := w.targetDuration

	w.logger.Info("starting auto-advance",
		"interval", interval,
		"windowSize", w.windowSize,
		"totalSegments", len(w.segments),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping auto-advance")
			return nil
		case <-ticker.C:
			w.Advance()

			p, err := w.Snapshot()
			if err != nil {
				return err
			}
			if err := publish(p); err != nil {
				return fmt.Errorf("failed to publish playlist: %w", err)
			}
		}
	}
}

// Stats returns the current position of the window.
func (w *Window) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Stats{
		WindowSize:            w.windowSize,
		TotalSegments:         len(w.segments),
		Position:              w.index(w.sequenceNumber),
		SequenceNumber:        w.sequenceNumber,
		DiscontinuitySequence: w.discontinuitySequence,
	}
}

func (w *Window) index(n uint64) int {
	return int(n % uint64(len(w.segments)))
}

// discontinuityAt reports whether the n-th segment since the window started
// follows a discontinuity, either from the source or from looping back to
// the first segment.
func (w *Window) discontinuityAt(n uint64) bool {
	idx := w.index(n)
	if w.segments[idx].Discontinuity {
		return true
	}
	return idx == 0 && n >= uint64(len(w.segments))
}

// closeKeys ends encryption with a METHOD=NONE key when a clear segment
// follows an encrypted one, which happens where the window loops.
func closeKeys(prev, keys []hls.ExtXKey) []hls.ExtXKey {
	if !hasFormat(prev, hls.DefaultKeyFormat) || hasFormat(keys, hls.DefaultKeyFormat) {
		return keys
	}
	out := make([]hls.ExtXKey, 0, len(keys)+1)
	out = append(out, keys...)
	return append(out, hls.ExtXKey{DecryptionKey: hls.DecryptionKey{Method: hls.MethodNone}})
}

func hasFormat(keys []hls.ExtXKey, format string) bool {
	for _, k := range keys {
		if k.Format() == format {
			return true
		}
	}
	return false
}

// resolveByteRanges gives every continuation range the offset it implies.
func resolveByteRanges(segments []hls.MediaSegment) error {
	for i := range segments {
		br := segments[i].ByteRange
		if br == nil || br.Range.Start != nil {
			continue
		}
		if i == 0 || segments[i-1].ByteRange == nil || segments[i-1].ByteRange.Range.Start == nil {
			return fmt.Errorf("segment %d has a byte range without a preceding range", i)
		}
		prev := segments[i-1].ByteRange.Range
		segments[i].ByteRange = &hls.ExtXByteRange{
			Range: hls.NewByteRange(br.Range.Length, *prev.Start+prev.Length),
		}
	}
	return nil
}

// effectiveMaps records, for each segment, the most recent EXT-X-MAP at or
// before it. Segments before the first map inherit the last map of the
// previous loop.
func effectiveMaps(segments []hls.MediaSegment) []*hls.ExtXMap {
	maps := make([]*hls.ExtXMap, len(segments))

	var last *hls.ExtXMap
	for _, seg := range segments {
		if seg.Map != nil {
			last = seg.Map
		}
	}

	for i, seg := range segments {
		if seg.Map != nil {
			last = seg.Map
		}
		maps[i] = last
	}
	return maps
}
