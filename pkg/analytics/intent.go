package analytics

import (
	"strings"
	"unicode"

	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/reasoning"
)

// IntentProductFAQ covers questions about the product itself (plans, limits).
// It is answered locally and never reaches the reasoning service.
const IntentProductFAQ reasoning.Intent = "product_faq"

// productWords only match questions about the asker's own account, so
// "subscription" or "tier" as a business metric still reaches the reasoner.
var productWords = []string{
	"euno", "my plan", "our plan", "my subscription", "our subscription", "my tier", "my quota",
	"my limit", "our limit", "upgrade my", "upgrade our plan", "how many questions can i",
	"how many questions do i", "questions do i have left", "plan include",
}

// offTopicWords are phrases that are never about a dataset. Nouns that can be
// product names ("football", "movie") are left to the reasoner.
var offTopicWords = []string{
	"weather", "recipe", "joke", "poem", "lyrics", "horoscope", "capital of", "translate",
	"write me a story", "tell me about yourself", "meaning of life",
}

// mentionsColumn reports whether the question names any selected column
func mentionsColumn(question string, sources []reasoning.SourceContext) bool {
	q := correlation.NormalizeName(question)
	for _, s := range sources {
		for _, c := range s.Columns {
			n := correlation.NormalizeName(c.Name)
			if len(n) >= 3 && strings.Contains(q, n) {
				return true
			}
		}
	}
	return false
}

// mentionsValue reports whether the question names a text value seen in the
// profile samples or the row sample of any selected source
func mentionsValue(question string, sources []reasoning.SourceContext) bool {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(question, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[correlation.NormalizeName(w)] = struct{}{}
	}
	joined := correlation.NormalizeName(question)

	matches := func(v interface{}) bool {
		text, ok := v.(string)
		if !ok {
			return false
		}
		n := correlation.NormalizeName(text)
		if len(n) < 3 {
			return false
		}
		if len(strings.Fields(text)) > 1 {
			return strings.Contains(joined, n)
		}
		_, ok = words[n]
		return ok
	}

	for _, s := range sources {
		for _, c := range s.Columns {
			for _, v := range c.SampleValues {
				if matches(v) {
					return true
				}
			}
		}
		for _, row := range s.Sample {
			for _, v := range row {
				if matches(v) {
					return true
				}
			}
		}
	}
	return false
}

// mentionsData is true when the question refers to the selected data by a
// column name or a value. Local shortcuts never fire for such questions.
func mentionsData(question string, sources []reasoning.SourceContext) bool {
	return mentionsColumn(question, sources) || mentionsValue(question, sources)
}

func isProductQuestion(question string, sources []reasoning.SourceContext) bool {
	q := " " + strings.ToLower(question) + " "
	return containsAnyWord(q, productWords) && !mentionsData(question, sources)
}

func isOffTopic(question string, sources []reasoning.SourceContext) bool {
	q := " " + strings.ToLower(question) + " "
	return containsAnyWord(q, offTopicWords) && !mentionsData(question, sources)
}

var forecastWords = []string{"forecast", "predict", "projection", "projected", "project next", "next month", "next quarter", "next year", "next week", "will we", "going to be"}

func asksForecast(question string) bool {
	return containsAnyWord(" "+strings.ToLower(question)+" ", forecastWords)
}
