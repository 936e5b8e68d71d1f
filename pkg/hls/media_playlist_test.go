package hls

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalMedia is already in rendered form, so String must reproduce it.
const canonicalMedia = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:7
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-INDEPENDENT-SEGMENTS
#EXT-X-START:TIME-OFFSET=-12.5,PRECISE=YES
#EXT-X-KEY:METHOD=AES-128,URI="https://example.com/k1",IV=0x0123456789ABCDEF0123456789ABCDEF
#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"
#EXT-X-PROGRAM-DATE-TIME:2024-03-01T10:00:00.5+02:00
#EXTINF:9.009,first
seg0.mp4
#EXT-X-DISCONTINUITY-SEQUENCE:3
#EXT-X-BYTERANGE:1000@0
#EXTINF:9.009,
main.mp4
#EXT-X-BYTERANGE:2000
#EXTINF:9.5,
main.mp4
#EXT-X-DATERANGE:ID="ad1",CLASS="com.example.ad",START-DATE="2024-03-01T10:00:30Z",DURATION=15,X-AD-ID="1234",SCTE35-OUT=0xFC002F
#EXT-X-DISCONTINUITY
#EXTINF:8,
seg3.ts
#EXT-X-ENDLIST
`

func TestParseMediaCanonical(t *testing.T) {
	p, err := ParseMedia(canonicalMedia)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, p.TargetDuration())
	seq, ok := p.MediaSequence()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), seq)
	dseq, ok := p.DiscontinuitySequence()
	assert.True(t, ok)
	assert.Equal(t, uint64(3), dseq)
	pt, ok := p.PlaylistType()
	assert.True(t, ok)
	assert.Equal(t, PlaylistTypeVOD, pt)
	assert.True(t, p.IndependentSegments())
	assert.True(t, p.EndList())
	assert.False(t, p.IFramesOnly())
	assert.Equal(t, V6, p.RequiredVersion())
	assert.Equal(t, 9009*time.Millisecond*2+9500*time.Millisecond+8*time.Second, p.Duration())

	segments := p.Segments()
	require.Len(t, segments, 4)
	assert.Equal(t, "first", segments[0].Inf.Title)
	require.NotNil(t, segments[0].Map)
	require.Len(t, segments[0].Map.Keys, 1)
	assert.Equal(t, "https://example.com/k1", segments[0].Map.Keys[0].URI)
	require.NotNil(t, segments[0].ProgramDateTime)
	assert.Nil(t, segments[1].Map)
	assert.True(t, segments[3].Discontinuity)
	require.NotNil(t, segments[3].DateRange)
	assert.Equal(t, "ad1", segments[3].DateRange.ID)
	require.Len(t, segments[3].Keys, 2)
	assert.Equal(t, "com.apple.streamingkeydelivery", segments[3].Keys[1].Format())

	assert.Equal(t, canonicalMedia, p.String())
}

func TestMediaRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"canonical": canonicalMedia,
		"minimal":   "#EXTM3U\n#EXT-X-TARGETDURATION:6\n",
		"untidy": `#EXTM3U
# a comment
#EXT-X-TARGETDURATION:10

#EXT-X-FUTURE-TAG:1
#EXT-X-KEY:METHOD=AES-128,URI="k1"
#EXTINF:9.5,
a.ts
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="k2"
#EXTINF:10,
b.ts
#EXT-X-KEY:METHOD=NONE
#EXTINF:10,
c.ts
`,
		"iframes": `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-I-FRAMES-ONLY
#EXT-X-MAP:URI="init.mp4"
#EXT-X-BYTERANGE:1000@0
#EXTINF:4,
main.mp4
#EXT-X-BYTERANGE:1000
#EXTINF:4,
main.mp4
`,
		"zero offset": `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-PROGRAM-DATE-TIME:2024-03-01T10:00:00+00:00
#EXT-X-DATERANGE:ID="ad",START-DATE="2024-03-01T10:00:00+00:00",END-DATE="2024-03-01T10:00:30+00:00"
#EXTINF:10,
a.ts
`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			p1, err := ParseMedia(input)
			require.NoError(t, err)
			p2, err := ParseMedia(p1.String())
			require.NoError(t, err)
			assert.Equal(t, p1, p2)
			assert.Equal(t, p1.String(), p2.String())
		})
	}
}

func TestMediaRenderKeyTransitions(t *testing.T) {
	p, err := ParseMedia(`#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-KEY:METHOD=AES-128,URI="k1"
#EXTINF:10,
a.ts
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="k2"
#EXTINF:10,
b.ts
#EXTINF:10,
c.ts
`)
	require.NoError(t, err)

	segments := p.Segments()
	assert.Equal(t, "k1", segments[1].Map.Keys[0].URI)
	assert.Equal(t, "k2", segments[1].Keys[0].URI)

	want := `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-TARGETDURATION:10
#EXT-X-KEY:METHOD=AES-128,URI="k1"
#EXTINF:10,
a.ts
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="k2"
#EXTINF:10,
b.ts
#EXTINF:10,
c.ts
`
	assert.Equal(t, want, p.String())
}

func TestSegmentDurationBound(t *testing.T) {
	input := "#EXTM3U\n#EXT-X-TARGETDURATION:8\n#EXTINF:9.509,\nsegment.ts\n"

	cases := []struct {
		excess time.Duration
		ok     bool
	}{
		{0, false},
		{time.Second, false},
		{2 * time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.excess.String(), func(t *testing.T) {
			_, err := ParseMedia(input, WithAllowableExcessDuration(tc.excess))
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrCustom)
			assert.Contains(t, err.Error(), "actual=10s")
			assert.Contains(t, err.Error(), "uri=segment.ts")
		})
	}
}

func TestRoundToSecondTiesUp(t *testing.T) {
	input := "#EXTM3U\n#EXT-X-TARGETDURATION:8\n#EXTINF:8.499,\na.ts\n"
	_, err := ParseMedia(input)
	require.NoError(t, err)

	input = "#EXTM3U\n#EXT-X-TARGETDURATION:8\n#EXTINF:8.5,\na.ts\n"
	_, err = ParseMedia(input)
	require.ErrorIs(t, err, ErrCustom)
}

func TestKeyPropagation(t *testing.T) {
	p, err := ParseMedia(`#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-KEY:METHOD=AES-128,URI="k1"
#EXTINF:10,
s1.ts
#EXT-X-KEY:METHOD=AES-128,URI="k2"
#EXTINF:10,
s2.ts
#EXT-X-KEY:METHOD=SAMPLE-AES,URI="k3",KEYFORMAT="com.example"
#EXTINF:10,
s3.ts
#EXT-X-KEY:METHOD=NONE
#EXTINF:10,
s4.ts
`)
	require.NoError(t, err)

	uris := func(keys []ExtXKey) []string {
		var out []string
		for _, k := range keys {
			out = append(out, k.URI)
		}
		return out
	}
	segments := p.Segments()
	assert.Equal(t, []string{"k1"}, uris(segments[0].Keys))
	assert.Equal(t, []string{"k2"}, uris(segments[1].Keys))
	assert.Equal(t, []string{"k2", "k3"}, uris(segments[2].Keys))
	require.Len(t, segments[3].Keys, 2)
	assert.Equal(t, MethodNone, segments[3].Keys[0].Method)
	assert.Equal(t, "k3", segments[3].Keys[1].URI)
}

func TestDanglingKey(t *testing.T) {
	_, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\na.ts\n#EXT-X-KEY:METHOD=NONE\n")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestByteRangeContinuation(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
	}{
		{
			"continues same uri",
			"#EXT-X-BYTERANGE:100@0\n#EXTINF:10,\nmain.ts\n#EXT-X-BYTERANGE:100\n#EXTINF:10,\nmain.ts\n",
			true,
		},
		{
			"different uri",
			"#EXT-X-BYTERANGE:100@0\n#EXTINF:10,\nmain.ts\n#EXT-X-BYTERANGE:100\n#EXTINF:10,\nother.ts\n",
			false,
		},
		{
			"first range has no offset",
			"#EXT-X-BYTERANGE:100\n#EXTINF:10,\nmain.ts\n",
			false,
		},
		{
			"previous segment has no range",
			"#EXT-X-BYTERANGE:100@0\n#EXTINF:10,\nmain.ts\n#EXTINF:10,\nmain.ts\n#EXT-X-BYTERANGE:100\n#EXTINF:10,\nmain.ts\n",
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n" + tc.input)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestDiscontinuitySequencePlacement(t *testing.T) {
	_, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-DISCONTINUITY-SEQUENCE:1\n#EXTINF:10,\na.ts\n")
	require.ErrorIs(t, err, ErrInvalidInput)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 3, e.Line)

	_, err = ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-DISCONTINUITY\n#EXTINF:10,\na.ts\n#EXT-X-DISCONTINUITY-SEQUENCE:1\n")
	require.ErrorIs(t, err, ErrInvalidInput)

	p, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\na.ts\n#EXT-X-DISCONTINUITY-SEQUENCE:1\n#EXT-X-DISCONTINUITY\n#EXTINF:10,\nb.ts\n")
	require.NoError(t, err)
	seq, ok := p.DiscontinuitySequence()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), seq)
}

func TestMediaStructuralErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		kind  error
		line  int
	}{
		{"empty", "", ErrInvalidInput, 0},
		{"only blank lines", "\n\n", ErrInvalidInput, 0},
		{"no header", "#EXT-X-TARGETDURATION:10\n", ErrInvalidInput, 1},
		{"header twice", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTM3U\n", ErrInvalidInput, 3},
		{"missing target duration", "#EXTM3U\n#EXTINF:10,\na.ts\n", ErrInvalidInput, 0},
		{"segment without uri", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\n", ErrInvalidInput, 0},
		{"uri without extinf", "#EXTM3U\n#EXT-X-TARGETDURATION:10\na.ts\n", ErrInvalidInput, 3},
		{"master tag", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-SESSION-DATA:DATA-ID=\"a\",VALUE=\"b\"\n", ErrUnexpectedTag, 3},
		{"bad tag", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-KEY:METHOD=AES-128\n", ErrMissingAttribute, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMedia(tc.input)
			require.ErrorIs(t, err, tc.kind)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tc.line, e.Line)
		})
	}
}

func TestUnexpectedTagNamesTag(t *testing.T) {
	_, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-STREAM-INF:BANDWIDTH=1\n")
	requireKind(t, err, ErrUnexpectedTag, nameStreamInf)
}

func TestVersionAggregation(t *testing.T) {
	p, err := ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\na.ts\n#EXT-X-ENDLIST\n")
	require.NoError(t, err)
	assert.Equal(t, V1, p.RequiredVersion())
	assert.NotContains(t, p.String(), "#EXT-X-VERSION")

	p, err = ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-BYTERANGE:100@0\n#EXTINF:10,\na.ts\n")
	require.NoError(t, err)
	assert.Equal(t, V4, p.RequiredVersion())
	assert.Contains(t, p.String(), "#EXT-X-VERSION:4\n")

	p, err = ParseMedia("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-I-FRAMES-ONLY\n#EXT-X-MAP:URI=\"i.mp4\"\n#EXTINF:10,\na.ts\n")
	require.NoError(t, err)
	assert.Equal(t, V5, p.RequiredVersion())
}

func TestStrictVersion(t *testing.T) {
	input := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-BYTERANGE:100@0\n#EXTINF:10,\na.ts\n"

	_, err := ParseMedia(input)
	require.NoError(t, err)

	_, err = ParseMedia(input, WithStrictVersion())
	require.ErrorIs(t, err, ErrCustom)

	_, err = ParseMedia(strings.Replace(input, "VERSION:3", "VERSION:4", 1), WithStrictVersion())
	require.NoError(t, err)
}

func TestMediaPlaylistBuilder(t *testing.T) {
	b := MediaPlaylistBuilder{
		TargetDuration: &ExtXTargetDuration{Duration: 6 * time.Second},
		MediaSequence:  &ExtXMediaSequence{Sequence: 100},
		Segments: []MediaSegment{
			{Inf: ExtInf{Duration: 6 * time.Second}, URI: "a.ts"},
			{Inf: ExtInf{Duration: 5500 * time.Millisecond, Title: "b"}, URI: "b.ts"},
		},
	}
	p, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, V3, p.RequiredVersion())

	want := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:100\n" +
		"#EXTINF:6,\na.ts\n#EXTINF:5.5,b\nb.ts\n"
	assert.Equal(t, want, p.String())

	parsed, err := ParseMedia(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
	assert.Equal(t, want, buf.String())
}

func TestMediaPlaylistBuilderValidation(t *testing.T) {
	target := &ExtXTargetDuration{Duration: 10 * time.Second}
	seg := MediaSegment{Inf: ExtInf{Duration: 10 * time.Second}, URI: "a.ts"}

	cases := []struct {
		name string
		b    MediaPlaylistBuilder
		kind error
	}{
		{"no target", MediaPlaylistBuilder{}, ErrInvalidInput},
		{"fractional target", MediaPlaylistBuilder{TargetDuration: &ExtXTargetDuration{Duration: 1500 * time.Millisecond}}, ErrInvalidInput},
		{"empty uri", MediaPlaylistBuilder{TargetDuration: target, Segments: []MediaSegment{{Inf: seg.Inf}}}, ErrInvalidInput},
		{"too long", MediaPlaylistBuilder{TargetDuration: target, Segments: []MediaSegment{{Inf: ExtInf{Duration: 11 * time.Second}, URI: "a.ts"}}}, ErrCustom},
		{"bad key", MediaPlaylistBuilder{TargetDuration: target, Segments: []MediaSegment{{Inf: seg.Inf, URI: "a.ts", Keys: []ExtXKey{{}}}}}, ErrMissingAttribute},
		{"drops key format", MediaPlaylistBuilder{TargetDuration: target, Segments: []MediaSegment{
			{Inf: seg.Inf, URI: "enc.ts", Keys: []ExtXKey{aesKey("k1")}},
			{Inf: seg.Inf, URI: "clear.ts"},
		}}, ErrInvalidInput},
		{"repeats key format", MediaPlaylistBuilder{TargetDuration: target, Segments: []MediaSegment{
			{Inf: seg.Inf, URI: "enc.ts", Keys: []ExtXKey{aesKey("k1"), aesKey("k2")}},
		}}, ErrInvalidInput},
		{"disc seq without segments", MediaPlaylistBuilder{TargetDuration: target, DiscontinuitySequence: &ExtXDiscontinuitySequence{}}, ErrInvalidInput},
		{"disc seq before discontinuity", MediaPlaylistBuilder{
			TargetDuration:        target,
			DiscontinuitySequence: &ExtXDiscontinuitySequence{Sequence: 2},
			Segments:              []MediaSegment{{Inf: seg.Inf, URI: "a.ts", Discontinuity: true}},
		}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.Build()
			require.ErrorIs(t, err, tc.kind)
		})
	}
}

func aesKey(uri string) ExtXKey {
	return ExtXKey{DecryptionKey: DecryptionKey{Method: MethodAES128, URI: uri}}
}

func TestMediaPlaylistBuilderEndsEncryption(t *testing.T) {
	inf := ExtInf{Duration: 10 * time.Second}
	none := ExtXKey{DecryptionKey: DecryptionKey{Method: MethodNone}}
	b := MediaPlaylistBuilder{
		TargetDuration: &ExtXTargetDuration{Duration: 10 * time.Second},
		Segments: []MediaSegment{
			{Inf: inf, URI: "enc.ts", Keys: []ExtXKey{aesKey("k1")}},
			{Inf: inf, URI: "clear.ts", Keys: []ExtXKey{none}},
			{Inf: inf, URI: "enc2.ts", Keys: []ExtXKey{aesKey("k2")}},
		},
	}
	p, err := b.Build()
	require.NoError(t, err)

	want := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k1\"\n#EXTINF:10,\nenc.ts\n" +
		"#EXT-X-KEY:METHOD=NONE\n#EXTINF:10,\nclear.ts\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k2\"\n#EXTINF:10,\nenc2.ts\n"
	assert.Equal(t, want, p.String())

	reparsed, err := ParseMedia(p.String())
	require.NoError(t, err)
	assert.Equal(t, p.Segments(), reparsed.Segments())
}

func TestMediaPlaylistIsImmutable(t *testing.T) {
	segments := []MediaSegment{{
		Inf:  ExtInf{Duration: 10 * time.Second},
		URI:  "a.ts",
		Keys: []ExtXKey{{DecryptionKey: DecryptionKey{Method: MethodAES128, URI: "k1"}}},
	}}
	b := MediaPlaylistBuilder{TargetDuration: &ExtXTargetDuration{Duration: 10 * time.Second}, Segments: segments}
	p, err := b.Build()
	require.NoError(t, err)

	segments[0].URI = "changed.ts"
	got := p.Segments()
	got[0].Keys[0].URI = "changed"

	again := p.Segments()
	assert.Equal(t, "a.ts", again[0].URI)
	assert.Equal(t, "k1", again[0].Keys[0].URI)

	draft := p.ToBuilder()
	draft.EndList = true
	q, err := draft.Build()
	require.NoError(t, err)
	assert.True(t, q.EndList())
	assert.False(t, p.EndList())
}
