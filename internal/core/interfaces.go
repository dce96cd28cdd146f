package core

import "context"

// TextService is the generation collaborator: instruction in, text out,
// optionally streamed. The core issues no retries, backoff, or rate limiting
// through this port; adapter-level policies live with the adapters and
// failures propagate to the invoking stage as ServiceError.
type TextService interface {
	// Complete sends one system+user exchange and returns the full response
	// text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteStream sends one exchange and invokes chunk for each
	// incremental fragment, returning the accumulated text. A chunk callback
	// error aborts the stream and is returned.
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string, chunk func(string) error) (string, error)
}

// Store is the persistence collaborator: field-level read/write of content
// units, story state, and participants by id. No transactional guarantees are
// required; the pipeline mutates between awaited calls on a single control
// thread.
type Store interface {
	GetUnit(ctx context.Context, id string) (ContentUnit, error)
	PutUnit(ctx context.Context, unit ContentUnit) error
	// ListUnits returns all units sorted by OrderIndex ascending.
	ListUnits(ctx context.Context) ([]ContentUnit, error)
	DeleteUnit(ctx context.Context, id string) error

	// GetState returns ErrNoStoryState when no bible has been extracted yet.
	GetState(ctx context.Context) (StoryState, error)
	PutState(ctx context.Context, state StoryState) error

	GetParticipant(ctx context.Context, id string) (Participant, error)
	PutParticipant(ctx context.Context, p Participant) error
	ListParticipants(ctx context.Context) ([]Participant, error)
}
