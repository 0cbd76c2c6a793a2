// Package redact masks personal identifiers in free text before it is logged.
package redact

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind is a category of identifier
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
)

// Finding is one identifier located in a string (byte offsets)
type Finding struct {
	Kind  Kind
	Start int
	End   int
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	phonePattern = regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\b[0-9]{3}\)?[-. ]?[0-9]{3}[-. ][0-9]{4}\b`)

	ssnPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		regexp.MustCompile(`\b[0-9]{9}\b`),
	}

	cardPattern = regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`)

	ipv4Pattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)
)

// Find returns every identifier in s ordered by position. Overlapping
// findings are merged into the earliest one.
func Find(s string) []Finding {
	var found []Finding
	add := func(kind Kind, locs [][]int, keep func(string) bool) {
		for _, loc := range locs {
			if keep != nil && !keep(s[loc[0]:loc[1]]) {
				continue
			}
			found = append(found, Finding{Kind: kind, Start: loc[0], End: loc[1]})
		}
	}

	add(KindEmail, emailPattern.FindAllStringIndex(s, -1), nil)
	add(KindCreditCard, cardPattern.FindAllStringIndex(s, -1), luhnCheck)
	add(KindSSN, ssnPatterns[0].FindAllStringIndex(s, -1), nil)
	add(KindSSN, ssnPatterns[1].FindAllStringIndex(s, -1), looksLikeSSN)
	add(KindPhone, phonePattern.FindAllStringIndex(s, -1), nil)
	add(KindIPAddress, ipv4Pattern.FindAllStringIndex(s, -1), nil)

	if len(found) == 0 {
		return nil
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	merged := []Finding{found[0]}
	for _, f := range found[1:] {
		last := &merged[len(merged)-1]
		if f.Start < last.End {
			if f.End > last.End {
				last.End = f.End
			}
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// Contains reports whether s holds any identifier
func Contains(s string) bool {
	return len(Find(s)) > 0
}

// String replaces every identifier in s with a typed placeholder
func String(s string) string {
	findings := Find(s)
	if len(findings) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, f := range findings {
		b.WriteString(s[prev:f.Start])
		b.WriteString(placeholder(f.Kind))
		prev = f.End
	}
	b.WriteString(s[prev:])
	return b.String()
}

// Preview redacts s and cuts the result to at most n runes, appending "..."
// when something was cut
func Preview(s string, n int) string {
	s = String(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func placeholder(kind Kind) string {
	switch kind {
	case KindEmail:
		return "[EMAIL_REDACTED]"
	case KindPhone:
		return "[PHONE_REDACTED]"
	case KindSSN:
		return "[SSN_REDACTED]"
	case KindCreditCard:
		return "[CC_REDACTED]"
	case KindIPAddress:
		return "[IP_REDACTED]"
	default:
		return "[REDACTED]"
	}
}

// looksLikeSSN rejects 9-digit numbers that cannot be issued SSNs
func looksLikeSSN(s string) bool {
	if len(s) != 9 {
		return false
	}
	if s[:3] == "000" || s[3:5] == "00" || s[5:] == "0000" {
		return false
	}
	return !strings.HasPrefix(s, "666") && !strings.HasPrefix(s, "9")
}

// luhnCheck validates a card number, ignoring spaces and dashes
func luhnCheck(number string) bool {
	number = strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	second := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if second {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		second = !second
	}
	return sum%10 == 0
}
