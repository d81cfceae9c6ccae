package analysis

import (
	"context"
	"sort"
	"sync"

	domain "meridian/internal/domain/analysis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
	"meridian/pkg/vector"
)

// RouteMatch is a candidate specialist for a step description
type RouteMatch struct {
	AgentType domain.AgentType
	Score     float64
}

// Router ranks specialists for a free-text step description
type Router interface {
	Route(ctx context.Context, description string) ([]RouteMatch, error)
}

// Embedder generates text embeddings
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is used for profile loading when the embedder supports it
type BatchEmbedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

var agentProfiles = map[domain.AgentType]string{
	domain.AgentEquity:         "equity valuation, discounted cash flow, cost of capital, comparable companies, earnings and price targets",
	domain.AgentCredit:         "credit risk, default probability, credit spreads, leverage ratios, ratings and covenants",
	domain.AgentFixedIncome:    "bonds, yield curves, duration and convexity, treasury and corporate bond pricing",
	domain.AgentDerivatives:    "options, futures and swaps pricing, greeks, implied volatility and hedging",
	domain.AgentQuantRisk:      "portfolio risk, value at risk, stress testing, correlation and drawdown analysis",
	domain.AgentMacro:          "macroeconomics, inflation, interest rates, central banks, GDP growth and currencies",
	domain.AgentESGRegulatory:  "ESG scores, climate and carbon exposure, regulation and compliance screening",
	domain.AgentPrivateMarkets: "private equity, leveraged buyouts, venture deals, IRR and private credit transactions",
}

// SemanticRouter classifies and routes by embedding similarity against specialist profiles.
// On embedder failure it degrades to the keyword table. Profiles are cached only once they
// load successfully, so a failed load is retried on the next call.
type SemanticRouter struct {
	embedder Embedder
	minScore float64
	fallback *KeywordClassifier
	log      *logger.Logger

	mu       sync.Mutex
	profiles map[domain.AgentType][]float32
}

// NewSemanticRouter creates a router over embedder. Matches below minScore are ignored.
func NewSemanticRouter(embedder Embedder, minScore float64, log *logger.Logger) *SemanticRouter {
	return &SemanticRouter{
		embedder: embedder,
		minScore: minScore,
		fallback: NewKeywordClassifier(),
		log:      log.With("component", "semantic_router"),
	}
}

func (r *SemanticRouter) loadProfiles(ctx context.Context) (map[domain.AgentType][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.profiles != nil {
		return r.profiles, nil
	}

	agentTypes := domain.AllAgentTypes()
	texts := make([]string, len(agentTypes))
	for i, t := range agentTypes {
		texts[i] = agentProfiles[t]
	}

	vectors, err := r.embedProfiles(ctx, agentTypes, texts)
	if err != nil {
		return nil, err
	}

	profiles := make(map[domain.AgentType][]float32, len(agentTypes))
	for i, t := range agentTypes {
		profiles[t] = vectors[i]
	}
	r.profiles = profiles
	r.log.Debugw("Loaded specialist profiles", "count", len(profiles))
	return profiles, nil
}

func (r *SemanticRouter) embedProfiles(ctx context.Context, agentTypes []domain.AgentType, texts []string) ([][]float32, error) {
	if batch, ok := r.embedder.(BatchEmbedder); ok {
		vectors, err := batch.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return nil, errors.Wrap(err, "embed profiles")
		}
		if len(vectors) != len(texts) {
			return nil, errors.Wrapf(errors.ErrInternal, "embed profiles: got %d vectors for %d profiles", len(vectors), len(texts))
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := r.embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, errors.Wrapf(err, "embed profile %s", agentTypes[i])
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Route ranks every specialist by cosine similarity to description
func (r *SemanticRouter) Route(ctx context.Context, description string) ([]RouteMatch, error) {
	profiles, err := r.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := r.embedder.GenerateEmbedding(ctx, description)
	if err != nil {
		return nil, errors.Wrap(err, "embed description")
	}

	matches := make([]RouteMatch, 0, len(profiles))
	for _, agentType := range domain.AllAgentTypes() {
		score := vector.Cosine(vec, profiles[agentType])
		if score >= r.minScore {
			matches = append(matches, RouteMatch{AgentType: agentType, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

// Classify takes shape hints and complexity from the keyword table and the domain set
// from semantic matches, falling back to keyword domains when nothing scores high enough.
func (r *SemanticRouter) Classify(ctx context.Context, query string) (domain.QueryIntent, error) {
	intent, err := r.fallback.Classify(ctx, query)
	if err != nil {
		return intent, err
	}

	matches, err := r.Route(ctx, query)
	if err != nil {
		r.log.Warnw("Semantic classification unavailable, using keyword table", "error", err)
		return intent, nil
	}
	if len(matches) == 0 {
		return intent, nil
	}

	seen := make(map[domain.Domain]bool, len(matches))
	for _, m := range matches {
		if d, ok := DomainForAgent(m.AgentType); ok {
			seen[d] = true
		}
	}
	// Keep canonical domain order
	domains := make([]domain.Domain, 0, len(seen))
	for _, d := range domain.AllDomains() {
		if seen[d] {
			domains = append(domains, d)
		}
	}

	intent.Domains = domains
	intent.Complexity = complexity(query, len(domains))
	return intent, nil
}
