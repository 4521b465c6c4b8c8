package businessflow

import (
	"github.com/inboxglow/inboxglow/utils"
)

// ReputationFactors are the raw counters feeding the sender reputation score
type ReputationFactors struct {
	Sent         int `json:"sent"`
	Delivered    int `json:"delivered"`
	Bounced      int `json:"bounced"`
	Opened       int `json:"opened"`
	Replied      int `json:"replied"`
	SpamReports  int `json:"spam_reports"`
	Unsubscribes int `json:"unsubscribes"`
	DaysActive   int `json:"days_active,omitempty"`
}

// ReputationScore is the derived composite score. All components are 0-100.
type ReputationScore struct {
	Overall        float64 `json:"overall"`
	Deliverability float64 `json:"deliverability"`
	Engagement     float64 `json:"engagement"`
	SpamScore      float64 `json:"spam_score"`
	BounceRate     float64 `json:"bounce_rate"`
}

// ReputationTrend classifies the direction of a score history
type ReputationTrend string

const (
	TrendImproving ReputationTrend = "improving"
	TrendDeclining ReputationTrend = "declining"
	TrendStable    ReputationTrend = "stable"
)

// ScoreReputation converts raw delivery and engagement counters into a
// composite sender score. An account that has sent nothing scores neutral:
// 50 overall with perfect spam and bounce components, since no evidence of
// harm exists yet.
func ScoreReputation(f ReputationFactors) ReputationScore {
	if f.Sent == 0 {
		return ReputationScore{
			Overall:        50,
			Deliverability: 50,
			Engagement:     50,
			SpamScore:      100,
			BounceRate:     100,
		}
	}

	deliverability := float64(f.Delivered) / float64(f.Sent) * 100

	// Replies weigh 5x opens; a reply is the strongest positive signal
	var openRate, replyRate float64
	if f.Delivered > 0 {
		openRate = float64(f.Opened) / float64(f.Delivered)
		replyRate = float64(f.Replied) / float64(f.Delivered)
	}
	engagement := openRate*40 + replyRate*200
	if engagement > 100 {
		engagement = 100
	}

	// Spam complaints above 0.1% of sent collapse this component fast
	spamRate := float64(f.SpamReports) / float64(f.Sent)
	spamScore := 100 - spamRate*10000
	if spamScore < 0 {
		spamScore = 0
	}

	// Combined bounce+unsubscribe rate above 2% collapses this component
	hardFailRate := float64(f.Bounced+f.Unsubscribes) / float64(f.Sent)
	bounceScore := 100 - hardFailRate*5000
	if bounceScore < 0 {
		bounceScore = 0
	}

	overall := 0.35*deliverability + 0.30*engagement + 0.20*spamScore + 0.15*bounceScore

	return ReputationScore{
		Overall:        utils.Clamp(overall, 0, 100),
		Deliverability: utils.Clamp(deliverability, 0, 100),
		Engagement:     utils.Clamp(engagement, 0, 100),
		SpamScore:      utils.Clamp(spamScore, 0, 100),
		BounceRate:     utils.Clamp(bounceScore, 0, 100),
	}
}

// IsAtRisk reports whether any component has degraded enough to need attention
func IsAtRisk(s ReputationScore) bool {
	return s.Overall < 60 ||
		s.Deliverability < 40 ||
		s.SpamScore < 60 ||
		s.BounceRate < 40
}

// Trend compares the mean of the first half of a score history against the
// second half. A shift of more than 5 points either way is a trend; anything
// smaller is noise.
func Trend(history []float64) ReputationTrend {
	if len(history) < 2 {
		return TrendStable
	}

	mid := len(history) / 2
	firstMean := mean(history[:mid])
	secondMean := mean(history[mid:])

	delta := secondMean - firstMean
	switch {
	case delta > 5:
		return TrendImproving
	case delta < -5:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
