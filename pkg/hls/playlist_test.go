package hls

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetectsKind(t *testing.T) {
	pl, err := Parse(canonicalMedia)
	require.NoError(t, err)
	assert.IsType(t, &MediaPlaylist{}, pl)

	pl, err = Parse(canonicalMaster)
	require.NoError(t, err)
	assert.IsType(t, &MasterPlaylist{}, pl)

	pl, err = Parse("#EXTM3U\n#EXT-X-INDEPENDENT-SEGMENTS\n")
	require.ErrorIs(t, err, ErrInvalidInput, "a header-only document is read as media and lacks a target duration")
	assert.Nil(t, pl)
}

func TestParseRejectsMixedKinds(t *testing.T) {
	cases := []struct {
		name  string
		input string
		tag   string
		line  int
	}{
		{"variant after media tag", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n", "EXT-X-STREAM-INF", 3},
		{"segment after variant", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n#EXTINF:10,\ns.ts\n", "EXTINF", 4},
		{"session key in media playlist", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\ns.ts\n#EXT-X-SESSION-KEY:METHOD=AES-128,URI=\"k\"\n", "EXT-X-SESSION-KEY", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.ErrorIs(t, err, ErrUnexpectedTag)

			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tc.tag, e.Name)
			assert.Equal(t, tc.line, e.Line)
		})
	}
}

func TestParseReportsTagErrorsWithLine(t *testing.T) {
	_, err := Parse("#EXTM3U\n#EXT-X-TARGETDURATION:10\n\n#EXT-X-MEDIA:TYPE=AUDIO\n")
	require.ErrorIs(t, err, ErrMissingAttribute)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 4, e.Line)
	assert.Equal(t, "GROUP-ID", e.Name)
}

func TestParseLogsUnknownTags(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Parse("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-VENDOR:1\n", WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ignoring unknown tag")
	assert.Contains(t, buf.String(), "name=EXT-X-VENDOR")
	assert.Contains(t, buf.String(), "line=3")
}

func TestPlaylistWriteTo(t *testing.T) {
	pl, err := Parse(canonicalMaster)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := pl.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(canonicalMaster)), n)
	assert.Equal(t, canonicalMaster, buf.String())
}
