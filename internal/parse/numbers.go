package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	numericRun     = regexp.MustCompile(`\p{Nd}(?:[\p{Nd}.,'’\x{066B}\x{066C}]| \p{Nd})*`)
	magnitudeToken = regexp.MustCompile(`^\s*([\p{L}\p{M}][\p{L}\p{M}.]*)`)
	bracketGroup   = regexp.MustCompile(`[(\[{]([^)\]}]*)[)\]}]`)
)

// ParseRating extracts a star rating in [0,5] from text like "4.8", "4,5 stars"
// or "Rated 4.2 out of 5". ok is false when no rating can be recovered.
func ParseRating(text string) (float64, bool) {
	inner, outer := stripDecoration(text)
	s := outer
	if !hasDigit(outer) {
		s = inner
	}
	mant, factor, ok := splitMagnitude(s)
	if !ok || factor != 1 {
		return 0, false
	}
	v, ok := parseDecimal(normalizeDigits(mant), true)
	if !ok || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// ParseReviewCount extracts a non-negative review count from text like
// "1,234 reviews", "(1.234)", "1.2K" or "٣ آلاف".
func ParseReviewCount(text string) (int, bool) {
	inner, outer := stripDecoration(text)
	s := outer
	if hasDigit(inner) {
		s = inner
	}
	mant, factor, ok := splitMagnitude(s)
	if !ok {
		return 0, false
	}
	v, ok := parseDecimal(normalizeDigits(mant), false)
	if !ok {
		return 0, false
	}
	n := math.Round(v * factor)
	if n < 0 || n >= float64(math.MaxInt) {
		return 0, false
	}
	return int(n), true
}

// stripDecoration unifies whitespace and splits text into the content of the
// first bracket group holding a digit (inner) and the text with all bracket
// groups removed (outer).
func stripDecoration(text string) (inner, outer string) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	s = strings.Join(strings.Fields(s), " ")

	for _, m := range bracketGroup.FindAllStringSubmatch(s, -1) {
		if hasDigit(m[1]) {
			inner = strings.TrimSpace(m[1])
			break
		}
	}
	outer = strings.TrimSpace(bracketGroup.ReplaceAllString(s, " "))
	outer = strings.Trim(outer, "()[]{} ")
	return inner, outer
}

// splitMagnitude isolates the first numeric run and the factor of the
// magnitude token directly following it.
func splitMagnitude(s string) (string, float64, bool) {
	loc := numericRun.FindStringIndex(s)
	if loc == nil {
		return "", 0, false
	}
	mant := strings.TrimRight(s[loc[0]:loc[1]], ".,'’ ٫٬")
	factor := 1.0
	if m := magnitudeToken.FindStringSubmatch(s[loc[1]:]); m != nil {
		key := strings.TrimSuffix(strings.ToLower(m[1]), ".")
		if f, ok := magnitudes[key]; ok {
			factor = f
		}
	}
	return mant, factor, true
}

func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '٫':
			return '.'
		case r == '٬':
			return ','
		case r == '\'' || r == '’' || r == ' ':
			return -1
		}
		for _, z := range digitZeros {
			if r >= z && r <= z+9 {
				return '0' + (r - z)
			}
		}
		return r
	}, s)
}

// parseDecimal reads digits with '.' or ',' separators. When both appear the
// last one is the decimal mark. A single separator followed by exactly three
// digits is a thousands mark unless decimalFirst is set.
func parseDecimal(s string, decimalFirst bool) (float64, bool) {
	if s == "" {
		return 0, false
	}
	last := strings.LastIndexAny(s, ".,")
	if last >= 0 {
		seps := strings.Count(s, ".") + strings.Count(s, ",")
		mixed := strings.Contains(s, ".") && strings.Contains(s, ",")
		frac := s[last+1:]
		whole := strings.NewReplacer(".", "", ",", "").Replace(s[:last])
		switch {
		case mixed:
			s = whole + "." + frac
		case seps > 1:
			s = whole + frac
		case len(frac) == 3 && !decimalFirst:
			s = whole + frac
		default:
			s = whole + "." + frac
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
