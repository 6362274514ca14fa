package cipher

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ytget/kwikdl/types"
)

// BaseAlphabet maps digit symbols to values for radices up to 64.
const BaseAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ+/"

const (
	// MinRadix is the smallest radix accepted by Decode.
	MinRadix = 2
	// MaxRadix is the largest radix accepted by Decode.
	MaxRadix = len(BaseAlphabet)
	// maxEncodeRadix keeps every digit a single decimal character after substitution.
	maxEncodeRadix = 10
)

// Decode validates p and decodes its cipher text.
func Decode(p types.ObfuscationParameters) (string, error) {
	if err := Validate(p); err != nil {
		return "", err
	}
	return DecodeSegment(p.CipherText, p.Alphabet, p.Offset, p.Radix), nil
}

// Validate checks that the radix is usable and the alphabet holds a separator at index radix.
func Validate(p types.ObfuscationParameters) error {
	if p.Radix < MinRadix || p.Radix > MaxRadix {
		return NewError(ErrCodeInvalidRadix, "radix out of range", p.Radix)
	}
	symbols := []rune(p.Alphabet)
	if len(symbols) <= p.Radix {
		return NewError(ErrCodeMissingSeparator, "alphabet has no separator at radix position", p.Alphabet)
	}
	for _, sym := range symbols[:p.Radix] {
		if sym == symbols[p.Radix] {
			return NewError(ErrCodeMissingSeparator, "separator repeats a digit symbol", string(sym))
		}
	}
	return nil
}

// DecodeSegment reproduces the text hidden in cipherText.
//
// The cipher text is split on alphabet[radix]. In every segment each alphabet
// symbol is replaced by the decimal string of its index, the result is read as
// a base-radix numeral over BaseAlphabet (last character least significant)
// and offset is subtracted to get a code point. Characters outside the digit
// set contribute zero. Code points that are out of range or overflow the
// numeral decode to U+FFFD. Invalid parameters yield an empty string.
func DecodeSegment(cipherText, alphabet string, offset, radix int) string {
	symbols := []rune(alphabet)
	if radix < 1 || radix > MaxRadix || radix >= len(symbols) {
		return ""
	}
	digits := BaseAlphabet[:radix]

	segments := strings.Split(cipherText, string(symbols[radix]))
	if segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}

	var out strings.Builder
	out.Grow(len(segments))
	for _, seg := range segments {
		for j, sym := range symbols {
			seg = strings.ReplaceAll(seg, string(sym), strconv.Itoa(j))
		}
		value, ok := numeralValue(seg, digits, radix)
		if !ok {
			out.WriteRune(utf8.RuneError)
			continue
		}
		out.WriteRune(toRune(value - int64(offset)))
	}
	return out.String()
}

// numeralValue sums digit*radix^pos from the end of s. It reports false when
// the value does not fit in an int64.
func numeralValue(s, digits string, radix int) (int64, bool) {
	var value int64
	weight := int64(1)
	saturated := false
	rs := []rune(s)
	for i := len(rs) - 1; i >= 0; i-- {
		if d := strings.IndexRune(digits, rs[i]); d > 0 {
			if saturated {
				return 0, false
			}
			hi, lo := bits.Mul64(uint64(d), uint64(weight))
			if hi != 0 || lo > math.MaxInt64-uint64(value) {
				return 0, false
			}
			value += int64(lo)
		}
		if !saturated {
			hi, lo := bits.Mul64(uint64(weight), uint64(radix))
			if hi != 0 || lo > math.MaxInt64 {
				saturated = true
			} else {
				weight = int64(lo)
			}
		}
	}
	return value, true
}

func toRune(code int64) rune {
	if code < 0 || code > unicode.MaxRune {
		return utf8.RuneError
	}
	return rune(code)
}

// EncodeSegment is the inverse of DecodeSegment for radices up to 10 and
// alphabets without ASCII digits. It is used to build fixtures.
func EncodeSegment(plain, alphabet string, offset, radix int) (string, error) {
	symbols := []rune(alphabet)
	if radix < MinRadix || radix > maxEncodeRadix {
		return "", NewError(ErrCodeNotInvertible, "radix must be between 2 and 10", radix)
	}
	if len(symbols) <= radix {
		return "", NewError(ErrCodeMissingSeparator, "alphabet has no separator at radix position", alphabet)
	}
	seen := make(map[rune]bool, radix+1)
	for i, sym := range symbols {
		if sym >= '0' && sym <= '9' {
			return "", NewError(ErrCodeNotInvertible, "alphabet contains a decimal digit", string(sym))
		}
		if i <= radix {
			if seen[sym] {
				return "", NewError(ErrCodeNotInvertible, "alphabet repeats a symbol", string(sym))
			}
			seen[sym] = true
		}
	}

	sep := symbols[radix]
	var out strings.Builder
	for _, r := range plain {
		n := int64(r) + int64(offset)
		if n < 0 {
			return "", NewError(ErrCodeNotInvertible, "offset makes a negative value", string(r))
		}
		var digits []rune
		for n > 0 {
			digits = append(digits, symbols[n%int64(radix)])
			n /= int64(radix)
		}
		for i := len(digits) - 1; i >= 0; i-- {
			out.WriteRune(digits[i])
		}
		out.WriteRune(sep)
	}
	return out.String(), nil
}
