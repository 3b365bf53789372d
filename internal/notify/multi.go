package notify

import (
	"context"
	"strings"

	"sentiment-alerts/internal/models"
)

// Multi sends to several channels in order. The result is SUCCESS only if
// every channel succeeded.
type Multi struct {
	channels []Channel
}

// NewMulti creates a fan-out channel.
func NewMulti(channels ...Channel) *Multi {
	return &Multi{channels: channels}
}

// Name joins the member names, e.g. "sms+email".
func (m *Multi) Name() string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name()
	}
	return strings.Join(names, "+")
}

// Send delivers to every member channel, even after a failure.
func (m *Multi) Send(ctx context.Context, dir models.Direction, ticker string, score float64, recipients []string) models.ChannelResult {
	var failures []string
	var delivered []string
	seen := make(map[string]bool)

	for _, ch := range m.channels {
		res := SafeSend(ctx, ch, dir, ticker, score, recipients)
		for _, r := range res.Recipients {
			if !seen[r] {
				seen[r] = true
				delivered = append(delivered, r)
			}
		}
		if !res.OK() {
			failures = append(failures, ch.Name()+": "+res.Detail)
		}
	}

	if len(failures) > 0 {
		r := models.Failed(m.Name(), strings.Join(failures, "; "))
		r.Recipients = delivered
		return r
	}
	return success(m.Name(), delivered, "")
}
