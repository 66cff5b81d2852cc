package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// catalog.json is served when no Postgres question store is configured and
// is what `seed` writes into one.
//
//go:embed catalog.json
var catalogJSON []byte

func sampleQuestions() ([]domain.Question, error) {
	var qs []domain.Question
	if err := json.Unmarshal(catalogJSON, &qs); err != nil {
		return nil, fmt.Errorf("decode sample catalog: %w", err)
	}
	return qs, nil
}

func categoriesOf(qs []domain.Question) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range qs {
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}
	return out
}
