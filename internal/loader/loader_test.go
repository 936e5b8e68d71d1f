package loader

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

func writePlaylist(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("Failed to write playlist: %v", err)
	}
	return path
}

func TestLoad_MediaPlaylist(t *testing.T) {
	path := writePlaylist(t, "media.m3u8", `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:9.9,
segment001.ts
#EXTINF:10.0,
segment002.ts
#EXTINF:10.1,
segment003.ts
#EXT-X-ENDLIST
`)

	l := New(strings.NewReader(""), createTestLogger())
	doc, err := l.Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	summary := Summarize(doc.Playlist)
	if summary.IsMaster {
		t.Error("Expected media playlist, got master")
	}
	if summary.Segments != 3 {
		t.Errorf("Expected 3 segments, got %d", summary.Segments)
	}
	if summary.TargetDuration != 10*time.Second {
		t.Errorf("Expected target duration 10s, got %v", summary.TargetDuration)
	}
	if summary.Duration != 30*time.Second {
		t.Errorf("Expected total duration 30s, got %v", summary.Duration)
	}
	if !summary.EndList {
		t.Error("Expected end list to be set")
	}
	if summary.Version != hls.V3 {
		t.Errorf("Expected version 3, got %v", summary.Version)
	}

	// Relative URIs resolve against the playlist's directory
	resolved, err := doc.Resolve("segment001.ts")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := filepath.Join(filepath.Dir(path), "segment001.ts")
	if resolved != expected {
		t.Errorf("Expected %s, got %s", expected, resolved)
	}
}

func TestLoad_MasterPlaylist(t *testing.T) {
	path := writePlaylist(t, "master.m3u8", `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",URI="audio.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,AUDIO="aac"
low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,AUDIO="aac"
high.m3u8
`)

	doc, err := New(strings.NewReader(""), createTestLogger()).Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	summary := Summarize(doc.Playlist)
	if !summary.IsMaster {
		t.Error("Expected master playlist, got media")
	}
	if summary.Variants != 2 {
		t.Errorf("Expected 2 variants, got %d", summary.Variants)
	}
	if summary.Renditions != 1 {
		t.Errorf("Expected 1 rendition, got %d", summary.Renditions)
	}
}

func TestLoad_Stdin(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\na.ts\n"

	doc, err := New(strings.NewReader(text), createTestLogger()).Load(Stdin)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if doc.Text != text {
		t.Errorf("Expected text to be kept verbatim, got %q", doc.Text)
	}

	resolved, err := doc.Resolve("a.ts")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resolved != "a.ts" {
		t.Errorf("Expected stdin URIs unchanged, got %s", resolved)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := New(strings.NewReader(""), createTestLogger()).Load(filepath.Join(t.TempDir(), "missing.m3u8"))
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoad_InvalidPlaylist(t *testing.T) {
	path := writePlaylist(t, "bad.m3u8", "not a valid m3u8 file\n")

	_, err := New(strings.NewReader(""), createTestLogger()).Load(path)
	if err == nil {
		t.Fatal("Expected error for invalid m3u8, got nil")
	}
	if !errors.Is(err, hls.ErrInvalidInput) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
}

func TestLoad_PassesOptions(t *testing.T) {
	path := writePlaylist(t, "long.m3u8", "#EXTM3U\n#EXT-X-TARGETDURATION:8\n#EXTINF:9.509,\na.ts\n")

	if _, err := New(strings.NewReader(""), createTestLogger()).Load(path); !errors.Is(err, hls.ErrCustom) {
		t.Fatalf("Expected duration error, got %v", err)
	}

	l := New(strings.NewReader(""), createTestLogger(), hls.WithAllowableExcessDuration(2*time.Second))
	if _, err := l.Load(path); err != nil {
		t.Fatalf("Expected no error with excess tolerance, got %v", err)
	}
}

func TestDocument_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "relative path",
			uri:      "segment.ts",
			expected: "/srv/media/segment.ts",
		},
		{
			name:     "absolute URL",
			uri:      "https://cdn.example.com/segment.ts",
			expected: "https://cdn.example.com/segment.ts",
		},
		{
			name:     "file path with subdirectory",
			uri:      "segments/segment.ts",
			expected: "/srv/media/segments/segment.ts",
		},
		{
			name:     "parent directory",
			uri:      "../keys/key.bin",
			expected: "/srv/keys/key.bin",
		},
		{
			name:     "root relative path",
			uri:      "/segments/segment.ts",
			expected: "/segments/segment.ts",
		},
		{
			name:     "query is kept",
			uri:      "segment.ts?token=abc",
			expected: "/srv/media/segment.ts?token=abc",
		},
	}

	doc := &Document{Source: "/srv/media/playlist.m3u8"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := doc.Resolve(tt.uri)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestDocument_AbsoluteMedia(t *testing.T) {
	path := writePlaylist(t, "media.m3u8", `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-MAP:URI="init.mp4"
#EXT-X-KEY:METHOD=AES-128,URI="keys/k1"
#EXTINF:10,
seg0.ts
#EXTINF:10,
https://cdn.example.com/seg1.ts
`)
	dir := filepath.Dir(path)

	doc, err := New(strings.NewReader(""), createTestLogger()).Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p, err := doc.Absolute(0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	media, ok := p.(*hls.MediaPlaylist)
	if !ok {
		t.Fatalf("Expected media playlist, got %T", p)
	}

	segments := media.Segments()
	if segments[0].URI != filepath.Join(dir, "seg0.ts") {
		t.Errorf("Expected resolved segment URI, got %s", segments[0].URI)
	}
	if segments[1].URI != "https://cdn.example.com/seg1.ts" {
		t.Errorf("Expected absolute URL unchanged, got %s", segments[1].URI)
	}
	if segments[0].Map == nil || segments[0].Map.URI != filepath.Join(dir, "init.mp4") {
		t.Errorf("Expected resolved map URI, got %+v", segments[0].Map)
	}
	for i, s := range segments {
		if len(s.Keys) != 1 || s.Keys[0].URI != filepath.Join(dir, "keys", "k1") {
			t.Errorf("segment[%d] expected resolved key URI, got %+v", i, s.Keys)
		}
	}

	// The decoded document itself is left untouched
	if got := doc.Playlist.(*hls.MediaPlaylist).Segments()[0].URI; got != "seg0.ts" {
		t.Errorf("Expected original playlist unchanged, got %s", got)
	}
}

func TestDocument_AbsoluteMaster(t *testing.T) {
	path := writePlaylist(t, "master.m3u8", `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",URI="audio/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1280000,AUDIO="aac"
low.m3u8
#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=80000,URI="iframes.m3u8"
`)
	dir := filepath.Dir(path)

	doc, err := New(strings.NewReader(""), createTestLogger()).Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p, err := doc.Absolute(0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	master, ok := p.(*hls.MasterPlaylist)
	if !ok {
		t.Fatalf("Expected master playlist, got %T", p)
	}

	if got := master.Media()[0].URI; got != filepath.Join(dir, "audio", "en.m3u8") {
		t.Errorf("Expected resolved rendition URI, got %s", got)
	}
	if got := master.Variants()[0].URI; got != filepath.Join(dir, "low.m3u8") {
		t.Errorf("Expected resolved variant URI, got %s", got)
	}
	if got := master.IFrameVariants()[0].URI; got != filepath.Join(dir, "iframes.m3u8") {
		t.Errorf("Expected resolved iframe URI, got %s", got)
	}
}

func TestDocument_AbsoluteStdin(t *testing.T) {
	doc, err := New(strings.NewReader("#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\na.ts\n"), createTestLogger()).Load(Stdin)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p, err := doc.Absolute(0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p != doc.Playlist {
		t.Error("Expected stdin playlist to be returned as is")
	}
}
