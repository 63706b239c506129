// Package rfc2047 decodes RFC 2047 encoded words in header field bodies.
//
// Decoding is a small pure-function chain: find encoded-word runs,
// undo the transfer encoding (B or Q) to bytes, then interpret the
// bytes in the declared charset. Literal text between runs passes
// through unchanged; whitespace separating two adjacent encoded words
// is discarded per RFC 2047 section 6.2.
package rfc2047

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// encodedWord matches one encoded word. The encoding slot deliberately
// accepts any token, not just B/Q, so that a bad tag surfaces as a
// decode error instead of passing through as literal text.
var encodedWord = regexp.MustCompile(`=\?([^?\s]*)\?([^?\s]*)\?([^?\s]*)\?=`)

// DecodeError reports a header body that could not be decoded. Raw is
// the full offending body, kept for diagnosis.
type DecodeError struct {
	Raw    string
	Reason error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode header %q: %v", e.Raw, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Reason }

// Decoder decodes encoded words, interpreting payloads with no declared
// charset using DefaultCharset.
type Decoder struct {
	DefaultCharset string
}

// Decode turns a raw header body into a single decoded string. Bodies
// without encoded words are returned unchanged.
func (d *Decoder) Decode(raw string) (string, error) {
	if !strings.Contains(raw, "=?") {
		return raw, nil
	}

	matches := encodedWord.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw, nil
	}

	var sb strings.Builder
	pos := 0
	for _, m := range matches {
		start, end := m[0], m[1]

		gap := raw[pos:start]
		// Whitespace between two adjacent encoded words is not part of
		// the decoded text.
		if !(pos > 0 && gap != "" && strings.TrimSpace(gap) == "") {
			sb.WriteString(gap)
		}

		charset := raw[m[2]:m[3]]
		encoding := raw[m[4]:m[5]]
		payload := raw[m[6]:m[7]]

		decoded, err := d.decodeWord(charset, encoding, payload)
		if err != nil {
			return "", &DecodeError{Raw: raw, Reason: err}
		}
		sb.WriteString(decoded)
		pos = end
	}
	sb.WriteString(raw[pos:])

	return sb.String(), nil
}

func (d *Decoder) decodeWord(charset, encoding, payload string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToUpper(encoding) {
	case "B":
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("base64 payload: %w", err)
		}
	case "Q":
		data, err = decodeQ(payload)
		if err != nil {
			return "", fmt.Errorf("quoted-printable payload: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported transfer encoding %q", encoding)
	}

	return decodeCharset(charset, d.DefaultCharset, data)
}

// decodeQ decodes the Q encoding of RFC 2047 section 4.2: underscore is
// space, =XX is a hex-encoded byte, everything else is literal.
func decodeQ(payload string) ([]byte, error) {
	out := make([]byte, 0, len(payload))
	for i := 0; i < len(payload); i++ {
		switch c := payload[i]; c {
		case '_':
			out = append(out, ' ')
		case '=':
			if i+2 >= len(payload) {
				return nil, fmt.Errorf("truncated hex escape at offset %d", i)
			}
			hi, ok1 := unhex(payload[i+1])
			lo, ok2 := unhex(payload[i+2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("invalid hex escape %q", payload[i:i+3])
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// decodeCharset interprets data in the named charset, falling back to
// the default when no charset is declared. An unrecognized charset is
// an error rather than a silent passthrough.
func decodeCharset(charset, fallback string, data []byte) (string, error) {
	if charset == "" {
		charset = fallback
	}

	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil {
		return "", fmt.Errorf("charset %q: %w", charset, err)
	}
	if enc == nil {
		return "", fmt.Errorf("no decoder for charset %q", charset)
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("charset %q: %w", charset, err)
	}
	return string(decoded), nil
}
