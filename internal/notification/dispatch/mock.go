package dispatch

import (
	"context"

	"github.com/arrivohq/arrivo/internal/notification/domain"
)

// mockSender synthesises deterministic successes so the pipeline can be
// exercised end to end without live provider credentials. Selected by
// configuring the channel provider as "none".
type mockSender struct {
	channel domain.Channel
}

func newMockSender(channel domain.Channel) mockSender {
	return mockSender{channel: channel}
}

func (m mockSender) Name() string { return "mock_" + string(m.channel) }

func (m mockSender) Send(_ context.Context, _ Target, n domain.Notification) (string, map[string]any, error) {
	// Message id is derived from the row id so re-dispatching in tests is
	// reproducible.
	return "mock-" + string(m.channel) + "-" + n.ID.String(), map[string]any{"mock": true}, nil
}
