package orchestrator

import (
	"math"
	"strings"

	"github.com/stake-plus/factcheck/src/types"
)

// normalizeProbabilities enforces the numeric invariants on model output:
// every confidence and truth probability ends up inside [0,1], missing claim
// probabilities are inferred from the verdict, and a missing overall
// probability becomes the mean of the claim probabilities.
func normalizeProbabilities(resp *types.FactCheckResponse) {
	for i := range resp.Claims {
		claim := &resp.Claims[i]
		claim.Confidence = clamp01(claim.Confidence)

		tp := claim.TruthProbability
		if tp == nil || math.IsNaN(*tp) || math.IsInf(*tp, 0) {
			inferred := inferTruthProbability(claim.Verdict, claim.Confidence)
			tp = &inferred
		}
		clamped := clamp01(*tp)
		claim.TruthProbability = &clamped
	}

	overall := resp.OverallAssessment.TruthProbability
	if overall == nil || math.IsNaN(*overall) || math.IsInf(*overall, 0) {
		mean := meanTruthProbability(resp.Claims)
		overall = &mean
	}
	clamped := clamp01(*overall)
	resp.OverallAssessment.TruthProbability = &clamped
}

// inferTruthProbability derives a probability from the verdict when the
// model did not supply one: a supported claim is as likely true as the model
// is confident, a disputed or misleading one the complement, anything else
// a coin flip.
func inferTruthProbability(verdict string, confidence float64) float64 {
	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case types.VerdictSupported:
		return confidence
	case types.VerdictDisputed, types.VerdictMisleading:
		return 1.0 - confidence
	default:
		return 0.5
	}
}

func meanTruthProbability(claims []types.Claim) float64 {
	if len(claims) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, claim := range claims {
		if claim.TruthProbability != nil {
			sum += *claim.TruthProbability
		} else {
			sum += 0.5
		}
	}
	return sum / float64(len(claims))
}

func clamp01(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0.5
	}
	return math.Min(1.0, math.Max(0.0, value))
}
