// Package core provides the expense domain types and pure helpers.
//
// This file contains the nullable integer used for amounts and payment days,
// its lenient parser and currency formatting.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Whole is an integer that may be absent. Absent values are stored as null.
type Whole struct {
	Value int64
	Valid bool
}

// WholeOf returns a present Whole.
func WholeOf(v int64) Whole {
	return Whole{Value: v, Valid: true}
}

// ParseWhole parses the leading integer of s.
//
// Leading whitespace and an optional sign are accepted, then as many decimal
// digits as follow. Trailing garbage is ignored. When no digit is found, or
// the value does not fit in an int64, the result is absent where a browser's
// parseInt would return an imprecise large number.
//
// Examples:
//
//	ParseWhole("15000")  -> 15000
//	ParseWhole(" 12abc") -> 12
//	ParseWhole("3.9")    -> 3
//	ParseWhole("abc")    -> absent
func ParseWhole(s string) Whole {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return Whole{}
	}
	v, err := strconv.ParseInt(sign+s[:end], 10, 64)
	if err != nil {
		return Whole{}
	}
	return WholeOf(v)
}

// Int64 returns the value, or 0 when absent.
func (w Whole) Int64() int64 {
	if !w.Valid {
		return 0
	}
	return w.Value
}

// String renders the value, or an empty string when absent.
func (w Whole) String() string {
	if !w.Valid {
		return ""
	}
	return strconv.FormatInt(w.Value, 10)
}

func (w Whole) MarshalJSON() ([]byte, error) {
	if !w.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(w.Value, 10)), nil
}

// UnmarshalJSON accepts integers, null, and floats (truncated toward zero).
func (w *Whole) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*w = Whole{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		*w = Whole{}
		return nil
	}
	*w = WholeOf(int64(f))
	return nil
}

// FormatWon renders a whole amount with thousands separators and the won suffix,
// e.g. 1234567 -> "1,234,567원".
func FormatWon(n int64) string {
	return groupThousands(n) + "원"
}

// FormatAmount renders an expense amount; absent amounts render as "-".
func FormatAmount(w Whole) string {
	if !w.Valid {
		return "-"
	}
	return FormatWon(w.Value)
}

func groupThousands(n int64) string {
	neg := n < 0
	digits := strconv.FormatUint(absUint(n), 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func absUint(n int64) uint64 {
	if n < 0 {
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}
