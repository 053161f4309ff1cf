package chat

import "context"

// Repository persists chats keyed by their client-supplied id.
//
// Update rewrites the full transcript and provisional-card columns; callers
// are expected to read the latest record, append, and write back. Concurrent
// turns on the same chat id are not serialized here.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Chat, error)
	Create(ctx context.Context, chat *Chat) error
	Update(ctx context.Context, chat *Chat) error
}
