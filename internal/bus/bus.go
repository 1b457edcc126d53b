package bus

import (
	"context"
	"time"
)

const TopicSourceDiscovered = "source.discovered"

// SourceDiscovered is emitted after an accepted item whose uploader is not a known source.
type SourceDiscovered struct {
	WarID        string    `json:"war_id"`
	Platform     string    `json:"platform"`
	Handle       string    `json:"handle"`
	Name         string    `json:"name,omitempty"`
	OriginURL    string    `json:"origin_url,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

type Bus interface {
	Publish(ctx context.Context, msg SourceDiscovered) error
	StartForwarder(ctx context.Context, onMsg func(m SourceDiscovered)) error
	Close() error
}
