package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/blogem/memorial-registry/access"
	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/telemetry"
)

// Fuzzy search defaults
const (
	DefaultMaxResults = 10
	DefaultCutoff     = 0.5
	MaxResultsLimit   = 100
)

// FuzzyOptions tunes FuzzySearch
type FuzzyOptions struct {
	MaxResults int
	Cutoff     float64
}

// DefaultFuzzyOptions returns the default result limit and similarity cutoff
func DefaultFuzzyOptions() FuzzyOptions {
	return FuzzyOptions{MaxResults: DefaultMaxResults, Cutoff: DefaultCutoff}
}

// normalize clamps MaxResults to [1, MaxResultsLimit] and Cutoff to [0, 1].
// A NaN cutoff cannot be clamped and is rejected.
func (o FuzzyOptions) normalize() (FuzzyOptions, error) {
	if math.IsNaN(o.Cutoff) {
		return o, apperr.Validation("cutoff must be a number between 0 and 1")
	}
	o.MaxResults = min(max(o.MaxResults, 1), MaxResultsLimit)
	o.Cutoff = math.Min(math.Max(o.Cutoff, 0), 1)
	return o, nil
}

// SearchHit is one search result with its location described in two languages
type SearchHit struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Score             float64 `json:"score"`
	LocationPrimary   string  `json:"locationSentencePrimary"`
	LocationSecondary string  `json:"locationSentenceSecondary"`
}

// NewSearchHit formats m for presentation
func NewSearchHit(m models.Memorial, score float64) SearchHit {
	return SearchHit{
		ID:                m.ID,
		Name:              m.Name,
		Score:             score,
		LocationPrimary:   models.LocationSentence(m, models.PrimaryLanguage),
		LocationSecondary: models.LocationSentence(m, models.SecondaryLanguage),
	}
}

// ScoredName is a candidate name with its similarity to the query
type ScoredName struct {
	Name  string
	Score float64
}

// Similarity returns the difflib ratio 2*M/T between a and b, computed per
// rune so multi-byte names are compared character by character.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

// RankNames scores names against query, keeps those at or above the cutoff,
// and returns at most opts.MaxResults of them, best first. Equal scores keep
// the order of names.
func RankNames(query string, names []string, opts FuzzyOptions) []ScoredName {
	var scored []ScoredName
	for _, name := range names {
		if score := Similarity(name, query); score >= opts.Cutoff {
			scored = append(scored, ScoredName{Name: name, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > opts.MaxResults {
		scored = scored[:opts.MaxResults]
	}
	return scored
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// SearchService interface defines name lookup over the registry
type SearchService interface {
	ExactSearch(ctx context.Context, name string) ([]SearchHit, error)
	FuzzySearch(ctx context.Context, name string, opts FuzzyOptions) ([]SearchHit, error)
	Autocomplete(ctx context.Context, prefix string) ([]string, error)
}

type searchService struct {
	records repositories.RecordRepository
	gate    access.Gate
	public  bool
}

// NewSearchService creates a search service. When public is false every
// search requires the admin role.
func NewSearchService(records repositories.RecordRepository, gate access.Gate, public bool) SearchService {
	return &searchService{records: records, gate: gate, public: public}
}

func (s *searchService) authorize(ctx context.Context) error {
	if s.public {
		return nil
	}
	_, err := access.RequireAdmin(ctx, s.gate)
	return err
}

// ExactSearch returns every record whose name equals name
func (s *searchService) ExactSearch(ctx context.Context, name string) ([]SearchHit, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	records, err := s.records.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(records))
	for _, m := range records {
		hits = append(hits, NewSearchHit(m, 1))
	}
	recordSearch("exact", len(hits))
	return hits, nil
}

// FuzzySearch ranks distinct names by similarity and resolves each kept name
// to the first record carrying it
func (s *searchService) FuzzySearch(ctx context.Context, name string, opts FuzzyOptions) ([]SearchHit, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	records, err := s.records.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Distinct names in snapshot order, each mapped to its first record
	first := make(map[string]models.Memorial, len(records))
	var names []string
	for _, m := range records {
		if _, seen := first[m.Name]; !seen {
			first[m.Name] = m
			names = append(names, m.Name)
		}
	}

	ranked := RankNames(name, names, opts)
	hits := make([]SearchHit, 0, len(ranked))
	for _, r := range ranked {
		hits = append(hits, NewSearchHit(first[r.Name], r.Score))
	}
	recordSearch("fuzzy", len(hits))
	return hits, nil
}

// Autocomplete lists distinct names starting with prefix, sorted by name
func (s *searchService) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return s.records.DistinctNames(ctx, strings.TrimSpace(prefix))
}

func recordSearch(mode string, hits int) {
	result := "hit"
	if hits == 0 {
		result = "miss"
	}
	telemetry.SearchesTotal.WithLabelValues(mode, result).Inc()
}
