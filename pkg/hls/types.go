package hls

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ByteRange is a sub-range of a resource: Length bytes starting at Start.
// A nil Start continues from the end of the previous range of the same URI.
type ByteRange struct {
	Length uint64
	Start  *uint64
}

// NewByteRange returns a range with an explicit start offset.
func NewByteRange(length, start uint64) ByteRange {
	return ByteRange{Length: length, Start: &start}
}

func (r ByteRange) String() string {
	if r.Start == nil {
		return strconv.FormatUint(r.Length, 10)
	}
	return strconv.FormatUint(r.Length, 10) + "@" + strconv.FormatUint(*r.Start, 10)
}

// ParseByteRange parses "<length>[@<start>]".
func ParseByteRange(s string) (ByteRange, error) {
	length, start, hasStart := strings.Cut(s, "@")
	n, err := strconv.ParseUint(length, 10, 64)
	if err != nil {
		return ByteRange{}, err
	}
	r := ByteRange{Length: n}
	if hasStart {
		o, err := strconv.ParseUint(start, 10, 64)
		if err != nil {
			return ByteRange{}, err
		}
		r.Start = &o
	}
	return r, nil
}

// Resolution is a decimal-resolution (WIDTHxHEIGHT).
type Resolution struct {
	Width  uint64
	Height uint64
}

func (r Resolution) String() string {
	return strconv.FormatUint(r.Width, 10) + "x" + strconv.FormatUint(r.Height, 10)
}

// ParseResolution parses "<width>x<height>".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q has no 'x'", s)
	}
	width, err := strconv.ParseUint(w, 10, 64)
	if err != nil {
		return Resolution{}, err
	}
	height, err := strconv.ParseUint(h, 10, 64)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Width: width, Height: height}, nil
}

var errNegative = errors.New("value must not be negative")

func parseDecimalInteger(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func formatDecimalInteger(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// parseSignedFloat parses a signed-decimal-floating-point.
func parseSignedFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// parseFloat parses a non-negative decimal-floating-point.
func parseFloat(s string) (float64, error) {
	f, err := parseSignedFloat(s)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, errNegative
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// maxWholeSeconds is the largest whole number of seconds a time.Duration holds.
const maxWholeSeconds = uint64(math.MaxInt64 / int64(time.Second))

// parseSeconds converts a decimal-floating-point number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f > math.MaxInt64/float64(time.Second) {
		return 0, strconv.ErrRange
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}

// formatSeconds renders d as decimal seconds from its integer nanoseconds, so
// that parseSeconds(formatSeconds(d)) == d.
func formatSeconds(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign, d = "-", -d
	}
	secs := strconv.FormatInt(int64(d/time.Second), 10)
	frac := d % time.Second
	if frac == 0 {
		return sign + secs
	}
	digits := strings.TrimRight(fmt.Sprintf("%09d", int64(frac)), "0")
	return sign + secs + "." + digits
}

// roundToSecond rounds d to whole seconds; a remainder of half a second or
// more rounds up.
func roundToSecond(d time.Duration) time.Duration {
	secs := d / time.Second
	if d%time.Second >= time.Second/2 {
		secs++
	}
	return secs * time.Second
}

func parseYesNo(s string) (bool, error) {
	switch s {
	case "YES":
		return true, nil
	case "NO":
		return false, nil
	}
	return false, fmt.Errorf("expected YES or NO, got %q", s)
}

// EncryptionMethod is the METHOD attribute of EXT-X-KEY.
type EncryptionMethod string

// Encryption methods.
const (
	MethodNone         EncryptionMethod = "NONE"
	MethodAES128       EncryptionMethod = "AES-128"
	MethodSampleAES    EncryptionMethod = "SAMPLE-AES"
	MethodSampleAESCTR EncryptionMethod = "SAMPLE-AES-CTR"
)

func parseEncryptionMethod(s string) (EncryptionMethod, error) {
	switch m := EncryptionMethod(s); m {
	case MethodNone, MethodAES128, MethodSampleAES, MethodSampleAESCTR:
		return m, nil
	}
	return "", fmt.Errorf("unknown encryption method %q", s)
}

// PlaylistType is the EXT-X-PLAYLIST-TYPE value.
type PlaylistType string

// Playlist types.
const (
	PlaylistTypeEvent PlaylistType = "EVENT"
	PlaylistTypeVOD   PlaylistType = "VOD"
)

func parsePlaylistType(s string) (PlaylistType, error) {
	switch t := PlaylistType(s); t {
	case PlaylistTypeEvent, PlaylistTypeVOD:
		return t, nil
	}
	return "", fmt.Errorf("unknown playlist type %q", s)
}

// MediaType is the TYPE attribute of EXT-X-MEDIA.
type MediaType string

// Rendition types.
const (
	MediaTypeAudio          MediaType = "AUDIO"
	MediaTypeVideo          MediaType = "VIDEO"
	MediaTypeSubtitles      MediaType = "SUBTITLES"
	MediaTypeClosedCaptions MediaType = "CLOSED-CAPTIONS"
)

func parseMediaType(s string) (MediaType, error) {
	switch t := MediaType(s); t {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeSubtitles, MediaTypeClosedCaptions:
		return t, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// InStreamID identifies a closed-caption channel: CC1-CC4 or SERVICE1-SERVICE63.
type InStreamID string

func parseInStreamID(s string) (InStreamID, error) {
	if strings.HasPrefix(s, "CC") {
		switch s[2:] {
		case "1", "2", "3", "4":
			return InStreamID(s), nil
		}
	} else if n, ok := strings.CutPrefix(s, "SERVICE"); ok && n != "" && n[0] != '0' {
		if v, err := strconv.ParseUint(n, 10, 8); err == nil && v >= 1 && v <= 63 {
			return InStreamID(s), nil
		}
	}
	return "", fmt.Errorf("invalid INSTREAM-ID %q", s)
}

// IsService reports whether id is one of the SERVICEn channels.
func (id InStreamID) IsService() bool {
	return strings.HasPrefix(string(id), "SERVICE")
}

// HDCPLevel is the HDCP-LEVEL attribute of variant streams.
type HDCPLevel string

// HDCP levels.
const (
	HDCPLevelType0 HDCPLevel = "TYPE-0"
	HDCPLevelType1 HDCPLevel = "TYPE-1"
	HDCPLevelNone  HDCPLevel = "NONE"
)

func parseHDCPLevel(s string) (HDCPLevel, error) {
	switch l := HDCPLevel(s); l {
	case HDCPLevelType0, HDCPLevelType1, HDCPLevelNone:
		return l, nil
	}
	return "", fmt.Errorf("unknown HDCP level %q", s)
}

// InitializationVector is the 128-bit IV of EXT-X-KEY.
type InitializationVector [16]byte

func (iv InitializationVector) String() string {
	return "0x" + strings.ToUpper(hex.EncodeToString(iv[:]))
}

func parseInitializationVector(s string) (InitializationVector, error) {
	var iv InitializationVector
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(s, "0X")
	}
	if !ok {
		return iv, fmt.Errorf("IV %q lacks 0x prefix", s)
	}
	if len(digits) != 2*len(iv) {
		return iv, fmt.Errorf("IV %q must have %d hex digits", s, 2*len(iv))
	}
	if _, err := hex.Decode(iv[:], []byte(digits)); err != nil {
		return iv, err
	}
	return iv, nil
}

const (
	timeISO8601 = "2006-01-02T15:04:05.999999999Z0700"
	timeRFC3339 = time.RFC3339Nano
)

// parseDateTime accepts both RFC3339 (-07:00) and ISO8601 (-0700) zones.
// A zero offset is reported in UTC, which is how formatDateTime writes it.
func parseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(timeRFC3339, s)
	if err != nil {
		t, err = time.Parse(timeISO8601, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	if _, offset := t.Zone(); offset == 0 {
		t = t.UTC()
	}
	return t, nil
}

func formatDateTime(t time.Time) string {
	return t.Format(timeRFC3339)
}
