package parse

import "strings"

// Locale vocabulary. All entries are lowercase; matching lowercases the input.

var starWords = []string{
	"star", "stars", // en
	"stern", "sterne", // de
	"étoile", "étoiles", // fr
	"stella", "stelle", // it
	"estrella", "estrellas", // es
	"نجمة", "نجوم", // ar
	"ดาว", // th
}

var reviewWords = []string{
	"review", "reviews",
	"bewertung", "bewertungen", "rezension", "rezensionen",
	"avis", "évaluation", "évaluations",
	"recensione", "recensioni", "valutazione", "valutazioni",
	"reseña", "reseñas", "opinión", "opiniones", "valoración", "valoraciones",
	"مراجعة", "مراجعات", "تقييم", "تقييمات",
	"รีวิว", "ความคิดเห็น",
}

// magnitudes maps a magnitude token (lowercase, trailing dot removed) to its factor.
// New locales only need entries here.
var magnitudes = map[string]float64{
	"k": 1e3, "m": 1e6,
	"thousand": 1e3, "million": 1e6, "millions": 1e6,
	"tausend": 1e3, "tsd": 1e3, "mio": 1e6, "millionen": 1e6,
	"mille": 1e3, "mila": 1e3, "milione": 1e6, "milioni": 1e6,
	"mil": 1e3, "millón": 1e6, "millones": 1e6, "milió": 1e6, "milions": 1e6,
	"ألف": 1e3, "آلاف": 1e3, "مليون": 1e6, "ملايين": 1e6,
	"พัน": 1e3, "ล้าน": 1e6,
}

// digitZeros holds the code point of zero for each non-Latin decimal script
// we normalize: Arabic-Indic, Extended Arabic-Indic, Devanagari, Bengali,
// Thai, Lao, Myanmar, fullwidth.
var digitZeros = []rune{0x0660, 0x06F0, 0x0966, 0x09E6, 0x0E50, 0x0ED0, 0x1040, 0xFF10}

// HasStarWord reports whether s mentions a rating unit in a supported locale.
func HasStarWord(s string) bool { return containsAny(s, starWords) }

// HasReviewWord reports whether s mentions reviews in a supported locale.
func HasReviewWord(s string) bool { return containsAny(s, reviewWords) }

func containsAny(s string, words []string) bool {
	low := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}

// AfterStarWord returns the lowercased text following the first rating unit,
// or s unchanged when none is present. Combined labels such as
// "4.6 stars 1,204 reviews" put the count after the rating.
func AfterStarWord(s string) string {
	low := strings.ToLower(s)
	at, end := -1, -1
	for _, w := range starWords {
		i := strings.Index(low, w)
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && i+len(w) > end) {
			at, end = i, i+len(w)
		}
	}
	if at < 0 {
		return s
	}
	return low[end:]
}
