package rank

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/siteqa/internal/domain/text"
)

// MaxBonus caps the heuristic bonus of a single chunk.
const MaxBonus = 2.0

// Trigger decides whether a rule applies to a lower-cased query.
type Trigger func(lowerQuery string) bool

// ContainsAny triggers when the query contains any of the phrases.
func ContainsAny(phrases ...string) Trigger {
	return func(q string) bool {
		for _, p := range phrases {
			if strings.Contains(q, p) {
				return true
			}
		}
		return false
	}
}

// ExpansionRule injects extra lexical terms when its trigger fires.
type ExpansionRule struct {
	When  Trigger
	Terms []string
}

// ExpansionRules are evaluated in order; their terms are tokenized and added after
// the query tokens.
var ExpansionRules = []ExpansionRule{
	{ContainsAny("incharge", "in charge"), []string{"responsible", "contact", "head"}},
	{ContainsAny("admission"), []string{"enrolment", "studierendensekretariat", "admissions", "admissions office"}},
	{ContainsAny("uniassist", "uni-assist", "uni assist"), []string{"uni-assist", "uni", "assist"}},
	{ContainsAny("aps"), []string{"akademische", "prüfstelle"}},
	{ContainsAny("deadline", "last date", "closing date"), []string{"application", "closing", "date"}},
	{ContainsAny("ects", "credit", "points"), []string{"ects", "credit", "module", "thesis"}},
}

// Query is a question analysed once for lexical and heuristic scoring.
type Query struct {
	Raw     string
	Lower   string
	Terms   []string
	Numbers []string
	bonuses []bonusFunc
}

var smallNumber = regexp.MustCompile(`\b\d{1,3}\b`)

// ParseQuery tokenizes q, applies the expansion rules and selects the bonus rules
// whose query-side trigger fires.
func ParseQuery(q string) Query {
	lower := strings.ToLower(q)

	seen := make(map[string]struct{})
	var terms []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, t := range text.Tokenize(q) {
		add(t)
	}
	for _, r := range ExpansionRules {
		if !r.When(lower) {
			continue
		}
		// phrases and hyphenated terms must match chunk tokens
		for _, phrase := range r.Terms {
			for _, t := range text.Tokenize(phrase) {
				add(t)
			}
		}
	}

	parsed := Query{
		Raw:     q,
		Lower:   lower,
		Terms:   terms,
		Numbers: smallNumber.FindAllString(lower, -1),
	}
	for _, r := range bonusRules {
		if r.when(lower) {
			parsed.bonuses = append(parsed.bonuses, r.score)
		}
	}
	return parsed
}

// target is the chunk side of a bonus match.
type target struct {
	text       string // original case
	lowerText  string
	lowerSrcID string
}

func (t target) mentions(phrase string) bool {
	return strings.Contains(t.lowerText, phrase) || strings.Contains(t.lowerSrcID, phrase)
}

type bonusFunc func(q *Query, t target) float64

type bonusRule struct {
	when  Trigger
	score bonusFunc
}

var (
	curriculumPhrases = []string{
		"ects", "credit", "credits", "thesis", "module", "modules", "study plan",
		"curriculum", "program structure", "pflichtbereich", "wahlpflichtbereich",
	}
	admissionPhrases = []string{
		"uni-assist", "uni assist", "aps", "application deadline",
		"admissions office", "studierendensekretariat",
	}
	degreeTitles = []string{
		"master of science", "master of arts", "master of laws", "english-taught",
	}

	personName = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	roomNumber = regexp.MustCompile(`room\s*\d+`)
)

// phraseBonus awards weight for every phrase present in both query and chunk.
func phraseBonus(phrases []string, weight float64) bonusFunc {
	return func(q *Query, t target) float64 {
		var s float64
		for _, p := range phrases {
			if strings.Contains(q.Lower, p) && t.mentions(p) {
				s += weight
			}
		}
		return s
	}
}

var bonusRules = []bonusRule{
	{ContainsAny(curriculumPhrases...), phraseBonus(curriculumPhrases, 0.9)},
	{ContainsAny(admissionPhrases...), phraseBonus(admissionPhrases, 0.8)},
	{ContainsAny("english", "program"), func(_ *Query, t target) float64 {
		for _, d := range degreeTitles {
			if strings.Contains(t.lowerText, d) {
				return 0.6
			}
		}
		return 0
	}},
	{ContainsAny("who", "incharge", "in charge", "responsible", "contact"), func(_ *Query, t target) float64 {
		var s float64
		if personName.MatchString(t.text) {
			s += 0.5
		}
		if strings.Contains(t.lowerText, "@") || roomNumber.MatchString(t.lowerText) {
			s += 0.3
		}
		return s
	}},
	{func(q string) bool { return smallNumber.MatchString(q) }, func(q *Query, t target) float64 {
		var s float64
		for _, n := range q.Numbers {
			if t.mentions(n) {
				s += 0.2
			}
		}
		return s
	}},
}

// Bonus returns the capped heuristic bonus of a chunk for the query.
func (q *Query) Bonus(chunkText, sourceID string) float64 {
	if len(q.bonuses) == 0 {
		return 0
	}
	t := target{
		text:       chunkText,
		lowerText:  strings.ToLower(chunkText),
		lowerSrcID: strings.ToLower(sourceID),
	}
	var s float64
	for _, b := range q.bonuses {
		s += b(q, t)
	}
	return min(s, MaxBonus)
}
