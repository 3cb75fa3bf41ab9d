package dashboard

import (
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/plans"
)

// StatsRequest identifies whose calls to aggregate.
type StatsRequest struct {
	UserID   string
	ClientID string
	// Plan, when set, adds talk-time usage against the plan allowance.
	Plan string
}

type Stats struct {
	AssistantID string `json:"assistantId"`

	TotalCalls      int `json:"totalCalls"`
	SuccessfulCalls int `json:"successfulCalls"`
	// SuccessRate is a whole percentage.
	SuccessRate int `json:"successRate"`

	TotalDurationSeconds   int     `json:"totalDurationSeconds"`
	AverageDurationMinutes float64 `json:"averageDurationMinutes"`
	TodayCalls             int     `json:"todayCalls"`

	RecentCalls []calls.Call `json:"recentCalls"`
	Usage       *plans.Usage `json:"usage,omitempty"`
}
