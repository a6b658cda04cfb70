package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// CanonicalTimeLayout is the only timestamp form that enters a signing input
// or an evidence hash.
const CanonicalTimeLayout = "2006-01-02T15:04:05.000000Z"

// NormalizeTime converts t to UTC at microsecond precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatCanonicalTime renders t in UTC at microsecond precision.
func FormatCanonicalTime(t time.Time) string {
	return NormalizeTime(t).Format(CanonicalTimeLayout)
}

// Field is one key/value pair of a canonical object. Values may be string,
// int, int64, []string or time.Time.
type Field struct {
	Key   string
	Value any
}

// CanonicalObject encodes fields as a compact JSON object in the given order.
// Strings must be valid UTF-8 so that distinct inputs never share an encoding.
func CanonicalObject(fields ...Field) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, f.Key); err != nil {
			return nil, fmt.Errorf("field key: %w", err)
		}
		buf.WriteByte(':')
		if err := writeCanonicalValue(buf, f.Value); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// HashObject returns the lowercase hex sha256 of CanonicalObject(fields...).
func HashObject(fields ...Field) (string, error) {
	canonical, err := CanonicalObject(fields...)
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}

func SHA256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

func writeCanonicalValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case string:
		return writeCanonicalString(buf, v)
	case int:
		buf.WriteString(strconv.Itoa(v))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case time.Time:
		return writeCanonicalString(buf, FormatCanonicalTime(v))
	case []string:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unsupported canonical type %T", ErrValidation, value)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrValidation, s)
	}
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}

var hexLower = []byte("0123456789abcdef")
