package scoring

import (
	"math"

	"github.com/ternarybob/macrolens/internal/models"
)

// Delta severities.
const (
	SeverityMajor = "major" // |delta| >= 2
	SeverityMinor = "minor" // |delta| >= 1
	SeverityOK    = "ok"
)

// Score tones used by the report scoreboard.
const (
	ToneElevated = "elevated"
	ToneBenign   = "benign"
	ToneStrong   = "strong"
	ToneWeak     = "weak"
	ToneNeutral  = "neutral"
)

// CompareScores lists the difference between each score a narrative claimed and
// the computed truth, in dial order. Dials the narrative did not claim are skipped.
func CompareScores(truth models.ScoreResult, claimed map[models.Dial]float64) []models.ScoreDelta {
	var out []models.ScoreDelta
	for _, dial := range models.DialOrder {
		c, ok := claimed[dial]
		if !ok {
			continue
		}
		t, ok := truth[dial]
		if !ok {
			continue
		}

		delta := round1(c - t.Score)
		severity := SeverityOK
		switch abs := math.Abs(delta); {
		case abs >= 2:
			severity = SeverityMajor
		case abs >= 1:
			severity = SeverityMinor
		}

		out = append(out, models.ScoreDelta{
			Dial:     dial,
			Claimed:  c,
			Computed: t.Score,
			Delta:    delta,
			Severity: severity,
		})
	}
	return out
}

// HighIsRisk reports whether a high score on the dial signals stress.
func HighIsRisk(dial models.Dial) bool {
	switch dial {
	case models.DialInflation, models.DialCredit, models.DialValuation:
		return true
	default:
		return false
	}
}

// ScoreTone classifies a score for display.
func ScoreTone(dial models.Dial, score float64) string {
	switch {
	case score >= 7 && HighIsRisk(dial):
		return ToneElevated
	case score <= 4 && HighIsRisk(dial):
		return ToneBenign
	case score >= 7:
		return ToneStrong
	case score <= 4:
		return ToneWeak
	default:
		return ToneNeutral
	}
}
