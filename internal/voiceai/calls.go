package voiceai

import (
	"time"

	"voiceagent-platform/internal/calls"
)

// RawCall is the provider's call object, trimmed to what we read.
type RawCall struct {
	ID          string     `json:"id"`
	AssistantID string     `json:"assistantId"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	EndedReason string     `json:"endedReason"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
	Duration    *float64   `json:"duration"`
	Cost        float64    `json:"cost"`
	Transcript  string     `json:"transcript"`
	Customer    *struct {
		Number string `json:"number"`
	} `json:"customer"`
	Artifact *struct {
		Transcript string `json:"transcript"`
	} `json:"artifact"`
}

// ToCall normalizes a provider call. Duration falls back to endedAt-startedAt.
func (r RawCall) ToCall() calls.Call {
	c := calls.Call{
		ID:          r.ID,
		AssistantID: r.AssistantID,
		Status:      calls.Status(r.Status),
		EndedReason: r.EndedReason,
		Cost:        r.Cost,
		Transcript:  r.Transcript,
		CreatedAt:   r.CreatedAt,
	}
	if c.Transcript == "" && r.Artifact != nil {
		c.Transcript = r.Artifact.Transcript
	}
	if r.Customer != nil {
		c.PhoneNumber = r.Customer.Number
	}
	switch {
	case r.Duration != nil:
		c.DurationSeconds = int(*r.Duration + 0.5)
	case r.StartedAt != nil && r.EndedAt != nil && r.EndedAt.After(*r.StartedAt):
		c.DurationSeconds = int(r.EndedAt.Sub(*r.StartedAt).Round(time.Second) / time.Second)
	}
	return c
}

func ToCalls(raw []RawCall) []calls.Call {
	out := make([]calls.Call, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.ToCall())
	}
	return out
}
