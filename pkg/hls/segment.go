package hls

import (
	"strings"
)

// MediaSegment is one media segment: the tags that describe it and the URI
// line that ends it. Keys is the set of decryption keys in effect when the
// URI line was reached.
type MediaSegment struct {
	Inf             ExtInf
	ByteRange       *ExtXByteRange
	Discontinuity   bool
	Map             *ExtXMap
	ProgramDateTime *ExtXProgramDateTime
	DateRange       *ExtXDateRange
	Keys            []ExtXKey
	URI             string
}

func (s MediaSegment) validate() error {
	if s.URI == "" {
		return invalidInput("segment has no URI")
	}
	if strings.ContainsAny(s.URI, "\r\n") {
		return invalidInput("segment URI %q spans lines", s.URI)
	}
	if err := s.Inf.Validate(); err != nil {
		return err
	}
	if s.Map != nil {
		if err := s.Map.Validate(); err != nil {
			return err
		}
	}
	if s.DateRange != nil {
		if err := s.DateRange.Validate(); err != nil {
			return err
		}
	}
	for _, k := range s.Keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// requiredVersion reports the version this segment forces. Inside an
// I-frames-only playlist EXT-X-MAP is allowed from V5.
func (s MediaSegment) requiredVersion(iFramesOnly bool) ProtocolVersion {
	vs := []versioned{s.Inf}
	if s.ByteRange != nil {
		vs = append(vs, *s.ByteRange)
	}
	if s.Map != nil {
		if iFramesOnly {
			vs = append(vs, atLeast(V5))
		} else {
			vs = append(vs, *s.Map)
		}
		for _, k := range s.Map.Keys {
			vs = append(vs, k)
		}
	}
	if s.ProgramDateTime != nil {
		vs = append(vs, *s.ProgramDateTime)
	}
	if s.DateRange != nil {
		vs = append(vs, *s.DateRange)
	}
	for _, k := range s.Keys {
		vs = append(vs, k)
	}
	return maxVersion(vs...)
}

// write renders the segment. active is the key state left by the previous
// segment; only the EXT-X-KEY lines needed to reach this segment's keys are
// written. It returns the key state after the segment.
func (s MediaSegment) write(b *strings.Builder, active keyRing) keyRing {
	if s.Map != nil {
		active = writeKeys(b, active, s.Map.Keys)
		writeLine(b, s.Map.String())
	}
	active = writeKeys(b, active, s.Keys)
	if s.ByteRange != nil {
		writeLine(b, s.ByteRange.String())
	}
	if s.DateRange != nil {
		writeLine(b, s.DateRange.String())
	}
	if s.Discontinuity {
		writeLine(b, ExtXDiscontinuity{}.String())
	}
	if s.ProgramDateTime != nil {
		writeLine(b, s.ProgramDateTime.String())
	}
	writeLine(b, s.Inf.String())
	writeLine(b, s.URI)
	return active
}

func writeKeys(b *strings.Builder, active keyRing, want []ExtXKey) keyRing {
	for _, k := range want {
		if active.has(k) {
			continue
		}
		active = active.apply(k)
		writeLine(b, k.String())
	}
	return active
}

// settleKeys checks that each segment's keys, and the keys of its map, can
// be reached from the keys of the segment before it by writing EXT-X-KEY
// lines. A key format, once active, stays active until replaced, so every
// key set must list each active format exactly once. Keys are stored in the
// order a decoder reports them.
func settleKeys(segments []MediaSegment) error {
	var active keyRing
	for i := range segments {
		s := &segments[i]
		if s.Map != nil {
			next, err := reachKeys(active, s.Map.Keys, s.URI)
			if err != nil {
				return err
			}
			s.Map.Keys = next.keys()
			active = next
		}
		next, err := reachKeys(active, s.Keys, s.URI)
		if err != nil {
			return err
		}
		s.Keys = next.keys()
		active = next
	}
	return nil
}

func reachKeys(active keyRing, want []ExtXKey, uri string) (keyRing, error) {
	var own keyRing
	next := active
	for _, k := range want {
		own = own.apply(k)
		next = next.apply(k)
	}
	if len(own) != len(want) {
		return nil, invalidInput("keys for segment %q repeat a key format", uri)
	}
	if len(next) != len(want) {
		return nil, invalidInput("keys for segment %q drop an active key format; end it with METHOD=%s", uri, MethodNone)
	}
	return next, nil
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteByte('\n')
}

func (s MediaSegment) clone() MediaSegment {
	c := s
	if s.ByteRange != nil {
		br := *s.ByteRange
		c.ByteRange = &br
	}
	if s.Map != nil {
		m := *s.Map
		m.Keys = keyRing(s.Map.Keys).keys()
		c.Map = &m
	}
	if s.ProgramDateTime != nil {
		pdt := *s.ProgramDateTime
		c.ProgramDateTime = &pdt
	}
	if s.DateRange != nil {
		dr := *s.DateRange
		dr.ClientAttributes = append([]ClientAttribute(nil), s.DateRange.ClientAttributes...)
		c.DateRange = &dr
	}
	c.Keys = keyRing(s.Keys).keys()
	return c
}
