package domain

// Lead classifications, ordered by purchase intent.
const (
	LeadHot  = "hot"
	LeadWarm = "warm"
	LeadCool = "cool"
	LeadCold = "cold"
)

// eventWeights maps event types to their lead-score contribution.
// Each distinct product the session has viewed additionally adds 1.0.
var eventWeights = map[string]float64{
	EventProductDetailExpand: 2,
	EventProductRevisit:      5,
	EventCartAdd:             10,
	EventCheckoutStart:       20,
}

// EventWeight returns the lead-score weight of an event type. Types
// without an explicit weight contribute 0.
func EventWeight(eventType string) float64 {
	return eventWeights[eventType]
}

// ClassifyLead buckets a lead score. Thresholds are inclusive at the
// lower bound: 30 is hot, 15 is warm, 5 is cool.
func ClassifyLead(score float64) string {
	switch {
	case score >= 30:
		return LeadHot
	case score >= 15:
		return LeadWarm
	case score >= 5:
		return LeadCool
	default:
		return LeadCold
	}
}
