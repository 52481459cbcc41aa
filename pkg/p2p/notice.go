package p2p

import (
	"context"

	"crosschain_bridge/pkg/data"
)

// AnnounceChallenge broadcasts a challenge window transition on the
// challenges topic so other bridge nodes can mirror the dispute state
func (h *Host) AnnounceChallenge(ctx context.Context, challenge *data.ChallengeInfo) error {
	msg, err := NewMessage(ChallengeNoticeMessage, &ChallengeNotice{
		TransactionID: challenge.TransactionID,
		Status:        string(challenge.Status),
		ExpiryTime:    challenge.ExpiryTime,
	})
	if err != nil {
		return err
	}
	return h.Publish(ctx, ChallengeTopic, msg)
}
