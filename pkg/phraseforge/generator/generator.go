// Package generator defines the contract for the external phrase
// generators. The model itself is a black box: given a prompt it
// returns candidate strings plus shallow attribution metadata.
package generator

import "context"

// Request is one batch request against a provider.
type Request struct {
	Category       string
	BatchSize      int
	PromptOverride string
}

// Result carries a batch's candidates and attribution.
type Result struct {
	Candidates []string
	ProviderID string
	ModelID    string
}

// Provider is one interchangeable generator implementation. Primary
// and secondary providers satisfy the same contract.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Static is a deterministic in-process provider used by dry runs and
// tests; it exercises the full pipeline without external calls.
type Static struct {
	ID        string
	Model     string
	Phrases   map[string][]string // category -> candidates
	Err       error               // returned on every call when set
	CallCount int
}

// Name implements Provider.
func (s *Static) Name() string {
	if s.ID == "" {
		return "static"
	}
	return s.ID
}

// Generate returns up to BatchSize canned candidates for the category.
func (s *Static) Generate(ctx context.Context, req Request) (Result, error) {
	s.CallCount++
	if s.Err != nil {
		return Result{}, s.Err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	candidates := s.Phrases[req.Category]
	if req.BatchSize > 0 && len(candidates) > req.BatchSize {
		candidates = candidates[:req.BatchSize]
	}
	out := make([]string, len(candidates))
	copy(out, candidates)

	return Result{Candidates: out, ProviderID: s.Name(), ModelID: s.Model}, nil
}
