package status

import "context"

// StatusWritten is emitted after every successful ledger append. Reaction
// rules receive it and may append further rows of their own.
type StatusWritten struct {
	Ref    EntityRef
	Status string
	Actor  string
}

// ReactionRule reacts to a status write. Rules must treat their own writes as
// best-effort: a returned error is logged by the dispatcher, never rolled back.
type ReactionRule interface {
	Name() string
	Handle(ctx context.Context, evt StatusWritten) error
}
