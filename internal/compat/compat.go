// Package compat decodes playlists a second time with github.com/grafov/m3u8
// and reports where that decoder disagrees with the hls package.
package compat

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

// durationTolerance absorbs float rounding in the other decoder's EXTINF values.
const durationTolerance = time.Millisecond

// Mismatch is a single disagreement between the two decoders.
type Mismatch struct {
	Field  string
	Ours   string
	Theirs string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: ours=%s grafov=%s", m.Field, m.Ours, m.Theirs)
}

// CrossCheck decodes text with grafov/m3u8 and compares the result against p,
// which must have been decoded from the same text. An error is returned only
// when grafov cannot decode the text at all.
func CrossCheck(text string, p hls.Playlist) ([]Mismatch, error) {
	decoded, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode with grafov/m3u8: %w", err)
	}

	switch ours := p.(type) {
	case *hls.MediaPlaylist:
		theirs, ok := decoded.(*m3u8.MediaPlaylist)
		if listType != m3u8.MEDIA || !ok {
			return []Mismatch{kindMismatch("media", "master")}, nil
		}
		return compareMedia(ours, theirs), nil
	case *hls.MasterPlaylist:
		theirs, ok := decoded.(*m3u8.MasterPlaylist)
		if listType != m3u8.MASTER || !ok {
			return []Mismatch{kindMismatch("master", "media")}, nil
		}
		return compareMaster(ours, theirs), nil
	default:
		return nil, fmt.Errorf("unsupported playlist type %T", p)
	}
}

func kindMismatch(ours, theirs string) Mismatch {
	return Mismatch{Field: "kind", Ours: ours, Theirs: theirs}
}

func compareMedia(ours *hls.MediaPlaylist, theirs *m3u8.MediaPlaylist) []Mismatch {
	var out []Mismatch
	add := func(field string, a, b any) {
		as, bs := fmt.Sprint(a), fmt.Sprint(b)
		if as != bs {
			out = append(out, Mismatch{Field: field, Ours: as, Theirs: bs})
		}
	}

	add("target-duration", int64(ours.TargetDuration()/time.Second), int64(theirs.TargetDuration))
	seq, _ := ours.MediaSequence()
	add("media-sequence", seq, theirs.SeqNo)
	add("endlist", ours.EndList(), theirs.Closed)

	// grafov keeps a fixed-capacity slice terminated by the first nil entry
	var segments []*m3u8.MediaSegment
	for _, seg := range theirs.Segments {
		if seg == nil {
			break
		}
		segments = append(segments, seg)
	}

	ourSegments := ours.Segments()
	add("segments", len(ourSegments), len(segments))
	if len(ourSegments) != len(segments) {
		return out
	}

	for i, seg := range ourSegments {
		add(fmt.Sprintf("segment[%d].uri", i), seg.URI, segments[i].URI)

		theirDuration := time.Duration(math.Round(segments[i].Duration * float64(time.Second)))
		diff := seg.Inf.Duration - theirDuration
		if diff < 0 {
			diff = -diff
		}
		if diff > durationTolerance {
			out = append(out, Mismatch{
				Field:  fmt.Sprintf("segment[%d].duration", i),
				Ours:   seg.Inf.Duration.String(),
				Theirs: theirDuration.String(),
			})
		}
	}

	return out
}

func compareMaster(ours *hls.MasterPlaylist, theirs *m3u8.MasterPlaylist) []Mismatch {
	var out []Mismatch

	// grafov stores I-frame streams alongside regular variants
	var variants, iframes []*m3u8.Variant
	for _, v := range theirs.Variants {
		if v == nil {
			continue
		}
		if v.Iframe {
			iframes = append(iframes, v)
		} else {
			variants = append(variants, v)
		}
	}

	ourVariants := ours.Variants()
	if len(ourVariants) != len(variants) {
		out = append(out, Mismatch{
			Field:  "variants",
			Ours:   fmt.Sprint(len(ourVariants)),
			Theirs: fmt.Sprint(len(variants)),
		})
	} else {
		for i, v := range ourVariants {
			if v.URI != variants[i].URI {
				out = append(out, Mismatch{Field: fmt.Sprintf("variant[%d].uri", i), Ours: v.URI, Theirs: variants[i].URI})
			}
			if v.Bandwidth != uint64(variants[i].Bandwidth) {
				out = append(out, Mismatch{
					Field:  fmt.Sprintf("variant[%d].bandwidth", i),
					Ours:   fmt.Sprint(v.Bandwidth),
					Theirs: fmt.Sprint(variants[i].Bandwidth),
				})
			}
		}
	}

	ourIFrames := ours.IFrameVariants()
	if len(ourIFrames) != len(iframes) {
		out = append(out, Mismatch{
			Field:  "iframe-variants",
			Ours:   fmt.Sprint(len(ourIFrames)),
			Theirs: fmt.Sprint(len(iframes)),
		})
	} else {
		for i, v := range ourIFrames {
			if v.URI != iframes[i].URI {
				out = append(out, Mismatch{Field: fmt.Sprintf("iframe-variant[%d].uri", i), Ours: v.URI, Theirs: iframes[i].URI})
			}
		}
	}

	return out
}
