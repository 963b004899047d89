package conversation

import "context"

// ReplyMessenger delivers replies back to the end user (e.g. via Telegram).
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries the data required to push a message to the user.
type OutboundReply struct {
	Identity string
	Body     string
}
