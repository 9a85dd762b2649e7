package translate

import (
	"context"
	"log"
	"strings"
	"time"
)

// Pipeline produces a best-effort English rendering of source text. It
// never fails the caller: when every provider is down the original text
// comes back unchanged, so translation stays strictly additive to message
// delivery.
type Pipeline struct {
	providers []Provider
	budget    time.Duration
}

func NewPipeline(budget time.Duration, providers ...Provider) *Pipeline {
	if budget <= 0 {
		budget = 8 * time.Second
	}
	return &Pipeline{providers: providers, budget: budget}
}

// ToEnglish races every provider and returns the first non-empty result.
// If the race produces nothing it walks the providers once more
// sequentially, absorbing transient ordering issues, before giving up and
// returning the original text.
func (p *Pipeline) ToEnglish(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(p.providers) == 0 {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	results := make(chan string, len(p.providers))
	for _, prov := range p.providers {
		go func(prov Provider) {
			out, err := prov.TranslateToEnglish(ctx, trimmed)
			if err != nil {
				log.Printf("Translation provider %s failed: %v", prov.Name(), err)
				results <- ""
				return
			}
			results <- strings.TrimSpace(out)
		}(prov)
	}

	pending := len(p.providers)
	for pending > 0 {
		select {
		case out := <-results:
			pending--
			if out != "" {
				return out
			}
		case <-ctx.Done():
			return text
		}
	}

	// All concurrent attempts came back empty; retry each in order with
	// whatever budget remains.
	for _, prov := range p.providers {
		if ctx.Err() != nil {
			break
		}
		out, err := prov.TranslateToEnglish(ctx, trimmed)
		if err != nil {
			continue
		}
		if out = strings.TrimSpace(out); out != "" {
			return out
		}
	}
	return text
}
