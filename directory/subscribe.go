package directory

import (
	"context"

	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/errors"
)

// topicTier maps each event topic to the tier required to read it.
var topicTier = map[bus.Topic]auth.Tier{
	bus.TopicPublic: auth.TierPublic,
	bus.TopicAgent:  auth.TierAgent,
	bus.TopicAdmin:  auth.TierAdmin,
}

// Subscribe attaches the caller to a live event topic. The agent topic
// requires agent credentials and delivers only events for the caller's
// own record unless the caller is an admin; the admin topic requires
// admin credentials; the public topic is open. Reconnecting clients
// should fetch a snapshot via List before resuming, since the bus holds
// nothing for the disconnected.
func (s *Service) Subscribe(ctx context.Context, ident auth.Identity, topic bus.Topic) (*bus.Subscription, error) {
	reqID := requestID(ident)

	required, ok := topicTier[topic]
	if !ok {
		return nil, errors.Validation("unknown topic "+string(topic),
			errors.WithRequestID(reqID))
	}

	decision, err := s.oracle.Authorize(ctx, ident, required)
	if err != nil {
		s.denied("subscribe:"+string(topic), reqID, err)
		return nil, err
	}

	// Agent-topic events carry full record payloads, so a non-admin
	// subscriber only sees events for the agent it acts as.
	if topic == bus.TopicAgent && !decision.Tier.Satisfies(auth.TierAdmin) {
		actingID := decision.ActingID
		return s.bus.Subscribe(topic, bus.WithFilter(func(ev bus.Event) bool {
			return actingID != "" && ev.AgentID == actingID
		}))
	}

	return s.bus.Subscribe(topic)
}
