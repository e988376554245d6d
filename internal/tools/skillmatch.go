package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/parleyhq/parley/internal/questionbank"
)

// SkillMatcher scores how closely a set of demonstrated skills matches a
// position description, using embedding cosine similarity.
type SkillMatcher struct {
	embedder questionbank.Embedder
}

// NewSkillMatcher creates a matcher over the shared embedder.
func NewSkillMatcher(embedder questionbank.Embedder) *SkillMatcher {
	return &SkillMatcher{embedder: embedder}
}

// Score returns a 0..1 similarity between the skills and the position.
func (m *SkillMatcher) Score(ctx context.Context, position string, skills []string) (float64, error) {
	if len(skills) == 0 {
		return 0, nil
	}
	vectors, err := m.embedder.Embed(ctx, []string{position, strings.Join(skills, ", ")})
	if err != nil {
		return 0, fmt.Errorf("skill match: %w", err)
	}
	if len(vectors) != 2 {
		return 0, fmt.Errorf("skill match: expected 2 vectors, got %d", len(vectors))
	}
	return cosine(vectors[0], vectors[1]), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
