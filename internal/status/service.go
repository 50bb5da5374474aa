package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"
)

// LedgerPort abstracts the append-only store for the service.
type LedgerPort interface {
	Append(ctx context.Context, row Row) (int64, error)
	Latest(ctx context.Context, ref EntityRef) (Row, bool, error)
	LatestBatch(ctx context.Context, kind Kind, ids []int64) (map[int64]Row, error)
	History(ctx context.Context, ref EntityRef) ([]Row, error)
}

// Service writes ledger rows and dispatches reaction rules. Cascaded writes
// go through Write as well, so a reaction can itself trigger further rules.
type Service struct {
	ledger   LedgerPort
	rules    []ReactionRule
	logger   *slog.Logger
	observer func(Kind)
}

// NewService constructs a Service.
func NewService(ledger LedgerPort, logger *slog.Logger) *Service {
	return &Service{ledger: ledger, logger: logger}
}

// Register appends reaction rules. Rules run in registration order.
func (s *Service) Register(rules ...ReactionRule) {
	s.rules = append(s.rules, rules...)
}

// Observe installs a callback fired after every successful append.
func (s *Service) Observe(fn func(Kind)) {
	s.observer = fn
}

// Write appends a status row dated now and dispatches reactions.
func (s *Service) Write(ctx context.Context, ref EntityRef, status, actor, comment string) (Row, error) {
	return s.WriteAt(ctx, ref, status, time.Now(), actor, comment)
}

// WriteAt appends a status row with an explicit date and dispatches reactions.
// Reaction failures are logged, never returned: the primary write stands on
// its own and cascades are one-way best effort.
func (s *Service) WriteAt(ctx context.Context, ref EntityRef, status string, date time.Time, actor, comment string) (Row, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return Row{}, fmt.Errorf("status: empty status for %s", ref)
	}
	if !ref.Kind.Valid() {
		return Row{}, fmt.Errorf("status: unknown entity kind %q", ref.Kind)
	}
	row := Row{Ref: ref, Status: status, StatusDate: date, UpdatedBy: actor, Comments: comment}
	id, err := s.ledger.Append(ctx, row)
	if err != nil {
		return Row{}, err
	}
	row.ID = id
	if s.observer != nil {
		s.observer(ref.Kind)
	}
	evt := StatusWritten{Ref: ref, Status: status, Actor: actor}
	for _, rule := range s.rules {
		if err := rule.Handle(ctx, evt); err != nil {
			if s.logger != nil {
				s.logger.Error("status cascade",
					slog.String("rule", rule.Name()),
					slog.String("entity", ref.String()),
					slog.String("status", status),
					slog.Any("error", err))
			}
		}
	}
	return row, nil
}

// Current resolves the entity's latest status; false when the ledger is empty.
func (s *Service) Current(ctx context.Context, ref EntityRef) (Row, bool, error) {
	return s.ledger.Latest(ctx, ref)
}

// CurrentBatch resolves latest statuses for many entities of one kind.
func (s *Service) CurrentBatch(ctx context.Context, kind Kind, ids []int64) (map[int64]Row, error) {
	return s.ledger.LatestBatch(ctx, kind, ids)
}

// History returns the full ledger for an entity, newest first.
func (s *Service) History(ctx context.Context, ref EntityRef) ([]Row, error) {
	return s.ledger.History(ctx, ref)
}
