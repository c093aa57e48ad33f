package service

import (
	"context"
	"time"

	apperrors "github.com/bongbong-com/modl-panel-sub005/internal/platform/errors"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/core/filter"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/punishment"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/ledger"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/cursor"
)

// PunishmentView is a punishment together with its state and effective
// duration projected at one evaluation instant.
type PunishmentView struct {
	Punishment punishment.Punishment
	State      punishment.State
	Resolution punishment.Resolution
	// At is the instant the view was projected for.
	At time.Time
}

// ProjectState rebuilds the punishment from its ledger and projects the
// state as of at. A zero at projects at the engine clock.
func (s *Service) ProjectState(ctx context.Context, playerID, punishmentID string, at time.Time) (punishment.State, error) {
	view, err := s.GetPunishment(ctx, playerID, punishmentID, at)
	if err != nil {
		return punishment.StateUnspecified, err
	}
	return view.State, nil
}

// GetPunishment rebuilds one punishment from its ledger: issuance,
// modifications, notes, evidence, and the projected state at at.
func (s *Service) GetPunishment(ctx context.Context, playerID, punishmentID string, at time.Time) (PunishmentView, error) {
	folded, _, err := ledger.ReplayPunishment(ctx, s.journal, playerID, punishmentID)
	if err != nil {
		return PunishmentView{}, err
	}
	return s.projectView(folded, at), nil
}

// ListPlayerPunishments rebuilds every punishment on the player's ledger in
// issuance order, each projected at at. An unknown player lists empty.
func (s *Service) ListPlayerPunishments(ctx context.Context, playerID string, at time.Time) ([]PunishmentView, error) {
	punishments, err := ledger.ReplayPlayer(ctx, s.journal, playerID)
	if err != nil {
		return nil, err
	}
	views := make([]PunishmentView, 0, len(punishments))
	for _, folded := range punishments {
		views = append(views, s.projectView(folded, at))
	}
	return views, nil
}

func (s *Service) projectView(folded punishment.Punishment, at time.Time) PunishmentView {
	if at.IsZero() {
		at = s.clock()
	}
	at = at.UTC()
	return PunishmentView{
		Punishment: folded,
		State:      punishment.Project(folded, folded.Modifications, at),
		Resolution: punishment.ResolveDurationAt(folded, folded.Modifications, at),
		At:         at,
	}
}

// HistoryRequest selects a page of ledger events.
type HistoryRequest struct {
	// PlayerID scopes the page to one player ledger; empty spans all players.
	PlayerID string
	// Filter is an AIP-160 expression over punishment_id, event_type,
	// actor_type, actor_id, and timestamp.
	Filter string
	// PageSize caps the page; the store applies its default and maximum.
	PageSize int
	// PageToken resumes a prior page. The token is bound to the filter it
	// was minted under.
	PageToken string
	// Descending orders newest-first when true.
	Descending bool
}

// HistoryPage is one page of ledger events.
type HistoryPage struct {
	Events []event.Event
	// NextPageToken is empty on the last page.
	NextPageToken string
	// TotalCount is the number of events matching the filter across all pages.
	TotalCount int
}

// ListHistory reads a filtered page of the ledger, newest or oldest first.
// Page tokens are opaque and single-filter: reusing a token with a different
// filter fails validation instead of silently skewing the page.
func (s *Service) ListHistory(ctx context.Context, req HistoryRequest) (HistoryPage, error) {
	condition, err := filter.ParseEventFilter(req.Filter)
	if err != nil {
		return HistoryPage{}, apperrors.Wrap(apperrors.CodeValidation, "parse history filter", err)
	}
	filterHash := cursor.HashFilter(req.Filter)

	var afterRowID int64
	if req.PageToken != "" {
		token, err := cursor.Decode(req.PageToken)
		if err != nil {
			return HistoryPage{}, apperrors.Wrap(apperrors.CodeValidation, "decode page token", err)
		}
		if err := cursor.ValidateFilterHash(token, req.Filter); err != nil {
			return HistoryPage{}, apperrors.Wrap(apperrors.CodeValidation, "validate page token", err)
		}
		if token.Descending != req.Descending {
			return HistoryPage{}, apperrors.New(apperrors.CodeValidation,
				"page token ordering does not match the request")
		}
		afterRowID = token.RowID
	}

	result, err := s.journal.ListEventsPage(ctx, storage.ListEventsPageRequest{
		PlayerID:     req.PlayerID,
		PageSize:     req.PageSize,
		AfterRowID:   afterRowID,
		Descending:   req.Descending,
		FilterClause: condition.Clause,
		FilterParams: condition.Params,
	})
	if err != nil {
		return HistoryPage{}, err
	}

	page := HistoryPage{Events: result.Events, TotalCount: result.TotalCount}
	if result.HasNextPage && len(result.RowIDs) > 0 {
		token, err := cursor.Encode(cursor.Cursor{
			RowID:      result.RowIDs[len(result.RowIDs)-1],
			Descending: req.Descending,
			FilterHash: filterHash,
		})
		if err != nil {
			return HistoryPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
