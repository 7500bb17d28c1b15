package types

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ChannelID identifies a conversation on a transport, namespaced by the
// transport prefix ("whatsapp:123@g.us", "telegram:42").
type ChannelID string
type MessageID string
type RunID string
type ArtifactID string
type JobID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

type runIDKey struct{}

// WithRunID returns a context carrying the ID of the run being processed.
func WithRunID(ctx context.Context, id RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run ID stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) RunID {
	id, _ := ctx.Value(runIDKey{}).(RunID)
	return id
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

func NewJobID() JobID {
	return JobID(uuid.New().String())
}

func NewChannelID(transport string, parts ...string) ChannelID {
	return ChannelID(strings.Join(append([]string{transport}, parts...), ":"))
}

// Transport returns the namespace prefix of the channel ("whatsapp").
func (c ChannelID) Transport() string {
	prefix, _, _ := strings.Cut(string(c), ":")
	return prefix
}

// Native returns the channel identifier without its transport prefix.
func (c ChannelID) Native() string {
	_, rest, ok := strings.Cut(string(c), ":")
	if !ok {
		return string(c)
	}
	return rest
}
