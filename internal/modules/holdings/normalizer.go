// Package holdings deduplicates look-through holdings reported by different funds.
package holdings

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// companySuffixPattern matches one trailing legal-entity, share-class or depositary marker.
// The marker must follow a separator so names like "Visa" or "Costco" are left intact.
var companySuffixPattern = regexp.MustCompile(`(?i)[\s,.\-]+(` +
	`inc\.?|incorporated|corp\.?|corporation|ltd\.?|limited|llc|l\.l\.c\.|` +
	`plc|p\.l\.c\.|ag|gmbh|kgaa|co\.?|company|sa|s\.a\.|nv|n\.v\.|bv|b\.v\.|` +
	`srl|s\.r\.l\.|pty|oyj|ab|asa|as|a/s|se|oy|spa|s\.p\.a\.|kg|& co|` +
	`hldgs?|holdings?|group|grp|enterprises?|technologies|systems?|international|platforms|` +
	`class [a-z]|cl\.? [a-z]|common stock|ord\.?|ordinary|` +
	`spon\.?\s*adr|sponsored\s*adr|adr|ads|gdr|depositary|receipt)\.?$`)

var domainSuffixPattern = regexp.MustCompile(`(?i)\.com|\.net|\.org|\.io`)

// Normalize canonicizes a holding name into the key used to join holdings across funds.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	current := collapseWhitespace(name)
	for {
		next := collapseWhitespace(CleanName(current))
		if next == current {
			break
		}
		current = next
	}
	return strings.ToLower(current)
}

// CleanName strips domain and company suffixes but keeps the original casing.
// Suffixes compound ("X Holdings, Inc."), so stripping repeats until nothing changes.
func CleanName(name string) string {
	result := stripDomains(name)
	for {
		stripped := strings.TrimSpace(companySuffixPattern.ReplaceAllString(result, ""))
		if stripped == result {
			return result
		}
		result = stripped
	}
}

func stripDomains(name string) string {
	result := strings.TrimSpace(name)
	for {
		stripped := strings.TrimSpace(domainSuffixPattern.ReplaceAllString(result, ""))
		if stripped == result {
			return result
		}
		result = stripped
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BestName picks the display name among variants of the same holding: the variant with the
// most characters left after cleaning wins, the first one seen on ties.
func BestName(names []string) string {
	if len(names) == 0 {
		return ""
	}

	best := CleanName(names[0])
	bestLen := utf8.RuneCountInString(best)
	for _, name := range names[1:] {
		cleaned := CleanName(name)
		if n := utf8.RuneCountInString(cleaned); n > bestLen {
			best, bestLen = cleaned, n
		}
	}
	return best
}
