// Package match applies the fuzzy scorer to a batch of chat messages.
package match

import (
	"github.com/corey/chatscan/internal/domain/fuzzy"
	"github.com/corey/chatscan/internal/ports"
)

// DefaultThreshold is the minimum score a message needs to be admitted.
// Tuned down from 0.80; configurable through Evaluator.Threshold.
const DefaultThreshold = 0.70

// Evaluator scores messages against a keyword set. A Threshold outside
// (0,1], including the zero value, means DefaultThreshold.
type Evaluator struct {
	Threshold float64
}

// New returns an evaluator with the given threshold. Values outside (0,1]
// fall back to DefaultThreshold.
func New(threshold float64) *Evaluator {
	return &Evaluator{Threshold: effectiveThreshold(threshold)}
}

func effectiveThreshold(t float64) float64 {
	if t <= 0 || t > 1 {
		return DefaultThreshold
	}
	return t
}

// Evaluate returns the admitted matches of msgs, in input order.
//
// Messages without a recording ID are malformed and skipped silently. For
// each remaining message the highest BestWordMatch over keywords wins; on a
// tie the earlier keyword is kept.
func (e *Evaluator) Evaluate(msgs []ports.Message, keywords []string) []ports.ScoredMatch {
	if len(keywords) == 0 {
		return nil
	}

	threshold := effectiveThreshold(e.Threshold)
	var out []ports.ScoredMatch
	for _, m := range msgs {
		if m.RecordingID == "" {
			continue
		}
		best, bestKw := 0.0, ""
		for _, kw := range keywords {
			if s := fuzzy.BestWordMatch(kw, m.Text); s > best {
				best, bestKw = s, kw
			}
		}
		if best >= threshold {
			out = append(out, ports.ScoredMatch{Message: m, Score: best, MatchedKeyword: bestKw})
		}
	}
	return out
}
