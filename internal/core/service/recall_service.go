package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

// RecallList is the data behind a recall table.
type RecallList struct {
	Recalls         []domain.RecallRecord `json:"recalls"`
	Total           int                   `json:"total"`
	Classifications []string              `json:"classifications"`
}

// RecallService runs the recall table's foreground actions.
type RecallService struct {
	api             ports.RecallAPI
	classifications []string
	log             zerolog.Logger
}

// NewRecallService returns a RecallService. classifications is the vocabulary
// accepted by UpdateClassification.
func NewRecallService(api ports.RecallAPI, classifications []string, log zerolog.Logger) *RecallService {
	return &RecallService{api: api, classifications: classifications, log: log}
}

// Classifications returns the accepted classification values.
func (s *RecallService) Classifications() []string {
	return slices.Clone(s.classifications)
}

// List fetches the caller's recalls and applies q. The listing endpoint is
// picked from the cached role; the server decides what is actually returned.
func (s *RecallService) List(ctx context.Context, caller Caller, q RecallQuery) (*RecallList, error) {
	if _, err := requireIdentity(caller); err != nil {
		return nil, err
	}
	scope := ports.ScopeOwn
	if snap := caller.Snapshot(); snap.RoleKnown && snap.Role.IsAdmin() {
		scope = ports.ScopeAll
	}

	records, err := s.api.ListRecalls(ctx, caller.TokenSource(ctx), scope)
	if err != nil {
		return nil, checkUnauthenticated(ctx, caller, fmt.Errorf("list recalls: %w", err))
	}
	return &RecallList{
		Recalls:         FilterRecalls(records, q),
		Total:           len(records),
		Classifications: s.Classifications(),
	}, nil
}

// SetAcknowledged acknowledges or withdraws the acknowledgment of a recall.
func (s *RecallService) SetAcknowledged(ctx context.Context, caller Caller, recallID string, acknowledged bool) error {
	if _, err := requireIdentity(caller); err != nil {
		return err
	}
	ts := caller.TokenSource(ctx)
	var err error
	if acknowledged {
		err = s.api.Acknowledge(ctx, ts, recallID)
	} else {
		err = s.api.Unacknowledge(ctx, ts, recallID)
	}
	if err != nil {
		return checkUnauthenticated(ctx, caller, fmt.Errorf("acknowledge recall %s: %w", recallID, err))
	}
	s.log.Info().Str("recall", recallID).Bool("acknowledged", acknowledged).Msg("recall acknowledgment updated")
	return nil
}

// SetReviewed marks a recall reviewed or back to pending.
func (s *RecallService) SetReviewed(ctx context.Context, caller Caller, recallID string, reviewed bool) error {
	if _, err := requireIdentity(caller); err != nil {
		return err
	}
	ts := caller.TokenSource(ctx)
	var err error
	if reviewed {
		err = s.api.MarkReviewed(ctx, ts, recallID)
	} else {
		err = s.api.MarkPending(ctx, ts, recallID)
	}
	if err != nil {
		return checkUnauthenticated(ctx, caller, fmt.Errorf("review recall %s: %w", recallID, err))
	}
	s.log.Info().Str("recall", recallID).Bool("reviewed", reviewed).Msg("recall review state updated")
	return nil
}

// UpdateClassification sets a recall's classification after checking it
// against the configured vocabulary.
func (s *RecallService) UpdateClassification(ctx context.Context, caller Caller, recallID, classification string) error {
	if _, err := requireIdentity(caller); err != nil {
		return err
	}
	if !slices.Contains(s.classifications, classification) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidClassification, classification)
	}
	if err := s.api.UpdateClassification(ctx, caller.TokenSource(ctx), recallID, classification); err != nil {
		return checkUnauthenticated(ctx, caller, fmt.Errorf("classify recall %s: %w", recallID, err))
	}
	s.log.Info().Str("recall", recallID).Str("classification", classification).Msg("recall classification updated")
	return nil
}
