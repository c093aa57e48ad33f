package sqlite

import (
	"fmt"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

type listEventsPageSQLPlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	countWhereClause string
	countParams      []any
}

// buildListEventsPageSQLPlan translates a page request into SQL fragments.
// Pages cursor on rowid because ledger sequences are per player and history
// views can span all players.
func buildListEventsPageSQLPlan(req storage.ListEventsPageRequest) listEventsPageSQLPlan {
	whereClause := "1 = 1"
	params := []any{}
	if req.PlayerID != "" {
		whereClause = "player_id = ?"
		params = append(params, req.PlayerID)
	}

	if req.AfterRowID > 0 {
		if req.Descending {
			whereClause += " AND rowid < ?"
		} else {
			whereClause += " AND rowid > ?"
		}
		params = append(params, req.AfterRowID)
	}

	if req.FilterClause != "" {
		whereClause += " AND " + req.FilterClause
		params = append(params, req.FilterParams...)
	}

	orderClause := "ORDER BY rowid ASC"
	if req.Descending {
		orderClause = "ORDER BY rowid DESC"
	}

	// The count ignores the cursor so TotalCount is stable across pages.
	countWhereClause := "1 = 1"
	countParams := []any{}
	if req.PlayerID != "" {
		countWhereClause = "player_id = ?"
		countParams = append(countParams, req.PlayerID)
	}
	if req.FilterClause != "" {
		countWhereClause += " AND " + req.FilterClause
		countParams = append(countParams, req.FilterParams...)
	}

	return listEventsPageSQLPlan{
		whereClause:      whereClause,
		params:           params,
		orderClause:      orderClause,
		limitClause:      fmt.Sprintf("LIMIT %d", req.PageSize+1),
		countWhereClause: countWhereClause,
		countParams:      countParams,
	}
}
