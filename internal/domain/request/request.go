// Package request provides the chat request domain entities.
package request

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a single inbound chat event. Role flags arrive already
// resolved by the chat transport.
type ChatMessage struct {
	UserName      string
	Content       string
	IsBroadcaster bool
	IsModerator   bool
	IsVip         bool
	IsSubscriber  bool
}

// QueueItem is one pending WIP request.
type QueueItem struct {
	ID          string
	UserName    string
	DownloadURL string
	RequestedAt time.Time
}

// NewQueueItem creates a queue item for the given user and resolved URL.
func NewQueueItem(userName, downloadURL string) QueueItem {
	return QueueItem{
		ID:          uuid.New().String(),
		UserName:    userName,
		DownloadURL: downloadURL,
		RequestedAt: time.Now(),
	}
}

// BroadcasterLimit is the effective request limit for the channel owner.
const BroadcasterLimit = 99

// Quotas holds the per-role request limits. The broadcaster is not listed
// and is effectively unlimited.
type Quotas struct {
	User       int
	Subscriber int
	Vip        int
	Moderator  int
}

// LimitFor resolves the quota for a message's sender.
// Highest privilege wins: broadcaster, moderator, VIP, subscriber, user.
func (q Quotas) LimitFor(msg ChatMessage) int {
	switch {
	case msg.IsBroadcaster:
		return BroadcasterLimit
	case msg.IsModerator:
		return q.Moderator
	case msg.IsVip:
		return q.Vip
	case msg.IsSubscriber:
		return q.Subscriber
	default:
		return q.User
	}
}
