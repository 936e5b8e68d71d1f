package hls

import (
	"strings"

	"github.com/agleyzer/hlsplaylist/internal/attribute"
)

// DefaultKeyFormat is the KEYFORMAT implied when the attribute is absent.
const DefaultKeyFormat = "identity"

// DecryptionKey holds the attributes shared by EXT-X-KEY and
// EXT-X-SESSION-KEY.
type DecryptionKey struct {
	Method            EncryptionMethod
	URI               string
	IV                *InitializationVector
	KeyFormat         string
	KeyFormatVersions string
}

// Format returns the key format, defaulting to "identity".
func (k DecryptionKey) Format() string {
	if k.KeyFormat == "" {
		return DefaultKeyFormat
	}
	return k.KeyFormat
}

func (k DecryptionKey) validate() error {
	if _, err := parseEncryptionMethod(string(k.Method)); err != nil {
		if k.Method == "" {
			return missingAttribute("METHOD")
		}
		return invalidValue("METHOD", err)
	}
	if k.Method == MethodNone {
		switch {
		case k.URI != "":
			return unexpectedAttribute("URI")
		case k.IV != nil:
			return unexpectedAttribute("IV")
		case k.KeyFormat != "":
			return unexpectedAttribute("KEYFORMAT")
		case k.KeyFormatVersions != "":
			return unexpectedAttribute("KEYFORMATVERSIONS")
		}
		return nil
	}
	if k.URI == "" {
		return missingAttribute("URI")
	}
	return nil
}

func (k DecryptionKey) clone() DecryptionKey {
	if k.IV != nil {
		iv := *k.IV
		k.IV = &iv
	}
	return k
}

func (k DecryptionKey) equal(o DecryptionKey) bool {
	if k.Method != o.Method || k.URI != o.URI || k.KeyFormat != o.KeyFormat ||
		k.KeyFormatVersions != o.KeyFormatVersions {
		return false
	}
	if k.IV == nil || o.IV == nil {
		return k.IV == o.IV
	}
	return *k.IV == *o.IV
}

func (k DecryptionKey) requiredVersion() ProtocolVersion {
	switch {
	case k.KeyFormat != "" || k.KeyFormatVersions != "":
		return V5
	case k.Method == MethodSampleAES || k.Method == MethodSampleAESCTR:
		return V5
	case k.IV != nil:
		return V2
	}
	return V1
}

func (k DecryptionKey) attributes() string {
	var b strings.Builder
	b.WriteString("METHOD=" + string(k.Method))
	if k.URI != "" {
		b.WriteString(",URI=" + attribute.Quote(k.URI))
	}
	if k.IV != nil {
		b.WriteString(",IV=" + k.IV.String())
	}
	if k.KeyFormat != "" {
		b.WriteString(",KEYFORMAT=" + attribute.Quote(k.KeyFormat))
	}
	if k.KeyFormatVersions != "" {
		b.WriteString(",KEYFORMATVERSIONS=" + attribute.Quote(k.KeyFormatVersions))
	}
	return b.String()
}

func parseDecryptionKey(name, params string, hasParams bool) (DecryptionKey, error) {
	pairs, err := attributes(name, params, hasParams)
	if err != nil {
		return DecryptionKey{}, err
	}
	var k DecryptionKey
	for _, p := range pairs {
		switch p.Name {
		case "METHOD":
			if k.Method, err = parseEncryptionMethod(p.Value); err != nil {
				return DecryptionKey{}, invalidValue(p.Name, err)
			}
		case "URI":
			if k.URI, err = quoted(p); err != nil {
				return DecryptionKey{}, err
			}
		case "IV":
			iv, err := parseInitializationVector(p.Value)
			if err != nil {
				return DecryptionKey{}, invalidValue(p.Name, err)
			}
			k.IV = &iv
		case "KEYFORMAT":
			if k.KeyFormat, err = quoted(p); err != nil {
				return DecryptionKey{}, err
			}
		case "KEYFORMATVERSIONS":
			if k.KeyFormatVersions, err = quoted(p); err != nil {
				return DecryptionKey{}, err
			}
		}
	}
	return k, nil
}

// ExtXKey is EXT-X-KEY. It applies to every following segment and map until
// another EXT-X-KEY with the same key format replaces it.
type ExtXKey struct {
	DecryptionKey
}

func (ExtXKey) tag() {}

// Validate implements Tag.
func (t ExtXKey) Validate() error { return t.validate() }

// RequiredVersion implements Tag.
func (t ExtXKey) RequiredVersion() ProtocolVersion { return t.requiredVersion() }

func (t ExtXKey) String() string {
	return "#" + nameKey + ":" + t.attributes()
}

func parseKey(params string, hasParams bool) (ExtXKey, error) {
	k, err := parseDecryptionKey(nameKey, params, hasParams)
	return ExtXKey{DecryptionKey: k}, err
}

// ExtXSessionKey is EXT-X-SESSION-KEY, a key announced in a master playlist
// so clients can preload it. Its method must not be NONE.
type ExtXSessionKey struct {
	DecryptionKey
}

func (ExtXSessionKey) tag() {}

// Validate implements Tag.
func (t ExtXSessionKey) Validate() error {
	if t.Method == MethodNone {
		return invalidInput("%s method must not be NONE", nameSessionKey)
	}
	return t.validate()
}

// RequiredVersion implements Tag.
func (t ExtXSessionKey) RequiredVersion() ProtocolVersion { return t.requiredVersion() }

func (t ExtXSessionKey) String() string {
	return "#" + nameSessionKey + ":" + t.attributes()
}

func parseSessionKey(params string, hasParams bool) (ExtXSessionKey, error) {
	k, err := parseDecryptionKey(nameSessionKey, params, hasParams)
	return ExtXSessionKey{DecryptionKey: k}, err
}

// keyRing is the set of keys in effect while reading a media playlist.
type keyRing []ExtXKey

// apply installs k, replacing the active key of the same format in place, or
// appending it when that format has no active key yet.
func (r keyRing) apply(k ExtXKey) keyRing {
	for i, active := range r {
		if active.Format() == k.Format() {
			next := r.clone()
			next[i] = k
			return next
		}
	}
	return append(r.clone(), k)
}

// has reports whether k is the active key of its format.
func (r keyRing) has(k ExtXKey) bool {
	for _, active := range r {
		if active.Format() == k.Format() {
			return active.equal(k.DecryptionKey)
		}
	}
	return false
}

func (r keyRing) clone() keyRing {
	if len(r) == 0 {
		return nil
	}
	return append(keyRing(nil), r...)
}

// keys returns a deep copy of the active keys.
func (r keyRing) keys() []ExtXKey {
	if len(r) == 0 {
		return nil
	}
	out := make([]ExtXKey, len(r))
	for i, k := range r {
		out[i] = ExtXKey{DecryptionKey: k.clone()}
	}
	return out
}
