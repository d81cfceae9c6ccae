package analysis

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"

	domain "meridian/internal/domain/analysis"
	"meridian/pkg/errors"
)

const maxQueryLength = 4000

// Classifier turns a query into a structured intent
type Classifier interface {
	Classify(ctx context.Context, query string) (domain.QueryIntent, error)
}

// domainKeywords is the static classification table. Fragments are matched
// case-insensitively at a word start, so stems like "regulat" cover inflections.
var domainKeywords = map[domain.Domain][]string{
	domain.DomainEquity:         {`equit`, `stock`, `shares?\b`, `dcf\b`, `earnings`, `price target`, `p/e\b`, `market cap`, `dividend`, `ipo\b`, `wacc\b`},
	domain.DomainCredit:         {`credit`, `default`, `spreads?\b`, `leverage`, `ratings?\b`, `covenant`, `high yield`, `loans?\b`, `downgrade`},
	domain.DomainFixedIncome:    {`bonds?\b`, `yields?\b`, `treasur`, `duration`, `coupon`, `fixed income`, `yield curve`, `gilts?\b`},
	domain.DomainDerivatives:    {`options?\b`, `derivativ`, `futures?\b`, `swaps?\b`, `volatility`, `greeks`, `hedg`, `implied vol`},
	domain.DomainQuantRisk:      {`risk`, `var\b`, `value at risk`, `stress`, `drawdown`, `correlation`, `tail`, `backtest`},
	domain.DomainMacro:          {`macro`, `inflation`, `gdp\b`, `interest rates?\b`, `central bank`, `fed\b`, `ecb\b`, `recession`, `fx\b`, `currenc`, `econom`},
	domain.DomainESGRegulatory:  {`esg\b`, `climate`, `carbon`, `sustainab`, `regulat`, `complian`, `governance`, `emission`},
	domain.DomainPrivateMarkets: {`private equity`, `private credit`, `private market`, `buyout`, `lbo\b`, `venture`, `irr\b`, `deal`, `acquisition`, `m&a\b`},
}

var (
	comparisonPattern     = regexp.MustCompile(`(?i)\b(compare|comparison|versus|vs\.?|relative to|against)\b`)
	recommendationPattern = regexp.MustCompile(`(?i)\b(should|recommend\w*|buy|sell|hold|invest|allocate|overweight|underweight|avoid)\b`)
	numericPattern        = regexp.MustCompile(`(?i)\b(estimate\w*|forecast\w*|target|fair value|how much|what is the value|price|probability|expected|project\w*|quantif\w*)\b`)
	complexityPattern     = regexp.MustCompile(`(?i)\b(scenario\w*|stress|portfolio|multi\w*|impact|sensitivit\w*|across|long-term|cross\w*|contagion|second-order)\b`)
)

// KeywordClassifier classifies queries with the static keyword table
type KeywordClassifier struct {
	patterns map[domain.Domain]*regexp.Regexp
}

// NewKeywordClassifier compiles the keyword table
func NewKeywordClassifier() *KeywordClassifier {
	patterns := make(map[domain.Domain]*regexp.Regexp, len(domainKeywords))
	for d, fragments := range domainKeywords {
		patterns[d] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(fragments, "|") + `)`)
	}
	return &KeywordClassifier{patterns: patterns}
}

// Classify builds an intent. Queries matching no domain are treated as equity questions.
func (c *KeywordClassifier) Classify(_ context.Context, query string) (domain.QueryIntent, error) {
	if err := ValidateQuery(query); err != nil {
		return domain.QueryIntent{}, err
	}

	var domains []domain.Domain
	for _, d := range domain.AllDomains() {
		if c.patterns[d].MatchString(query) {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		domains = []domain.Domain{domain.DomainEquity}
	}

	intent := shapeOf(query)
	intent.Domains = domains
	intent.Complexity = complexity(query, len(domains))
	return intent, nil
}

// ValidateQuery rejects queries no classifier can work with
func ValidateQuery(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return errors.Wrap(errors.ErrPlanning, "empty query")
	}
	if len(q) > maxQueryLength {
		return errors.Wrapf(errors.ErrPlanning, "query exceeds %d characters", maxQueryLength)
	}
	if strings.IndexFunc(q, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return errors.Wrap(errors.ErrPlanning, "query has no words")
	}
	return nil
}

func shapeOf(query string) domain.QueryIntent {
	return domain.QueryIntent{
		Comparison:     comparisonPattern.MatchString(query),
		Recommendation: recommendationPattern.MatchString(query),
		Numeric:        numericPattern.MatchString(query),
	}
}

// complexity = 0.2 per domain + 0.1 per complexity cue + words/100, capped at 1
func complexity(query string, domainCount int) float64 {
	score := 0.2*float64(domainCount) +
		0.1*float64(len(complexityPattern.FindAllString(query, -1))) +
		float64(len(strings.Fields(query)))/100

	return math.Round(math.Min(score, 1)*100) / 100
}

// normalizeIntent clamps complexity into [0,1] and keeps each domain once, in classifier order.
// Domains missing from the domain table are kept only when keepUnmapped is set, i.e. when a
// router can resolve them to a specialist.
func normalizeIntent(intent domain.QueryIntent, keepUnmapped bool) domain.QueryIntent {
	seen := make(map[domain.Domain]bool, len(intent.Domains))
	domains := make([]domain.Domain, 0, len(intent.Domains))
	for _, d := range intent.Domains {
		d = domain.Domain(strings.TrimSpace(string(d)))
		if d == "" || seen[d] {
			continue
		}
		if _, mapped := AgentForDomain(d); !mapped && !keepUnmapped {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	intent.Domains = domains

	switch {
	case math.IsNaN(intent.Complexity) || intent.Complexity < 0:
		intent.Complexity = 0
	case intent.Complexity > 1:
		intent.Complexity = 1
	}
	return intent
}
