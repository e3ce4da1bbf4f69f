package telegram

import (
	"context"
	"time"
)

// searchPageSize is how many messages one search page requests.
const searchPageSize = 100

// Message is one channel or chat message, already lifted out of the wire
// representation.
type Message struct {
	ID     int64
	PeerID int64
	Date   time.Time
	Text   string
	Media  *MediaRef
}

// MediaRef points at downloadable media attached to a message. Handle is
// owned by the session implementation.
type MediaRef struct {
	Handle any
}

// Page is one search result page. Chats and Users map numeric peer ids to
// the human-readable names the same response carried. NextRate is the
// global search cursor; nil means the cursor is exhausted.
type Page struct {
	Messages []Message
	Chats    map[int64]string
	Users    map[int64]string
	NextRate *int
}

// Session is an authenticated connection, alive for the duration of one
// Connect callback.
type Session interface {
	// SearchPeer searches one channel's history. offsetID pages backward:
	// only messages with a smaller id are returned.
	SearchPeer(ctx context.Context, peer, query string, offsetID int64, limit int) (Page, error)

	// SearchGlobal searches across all dialogs using the rate cursor.
	SearchGlobal(ctx context.Context, query string, offsetRate, limit int) (Page, error)

	// DownloadThumb fetches the smallest usable thumbnail of the media.
	DownloadThumb(ctx context.Context, media *MediaRef) ([]byte, error)
}

// Client hands a live session to fn and tears the connection down when fn
// returns.
type Client interface {
	Connect(ctx context.Context, fn func(ctx context.Context, s Session) error) error
}
