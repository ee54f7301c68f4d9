package postgres

import (
	"fmt"

	"launchline/internal/domain"
)

// appendCursorFilters renders the keyset and sync-token predicates for a
// listing query. Column names come from code, never from client input; only
// the filter values are bound as arguments.
func appendCursorFilters(result domain.CursorResult, fields domain.PaginationFields, conds []string, args []any) ([]string, []any) {
	if f := result.CursorFilter; f != nil {
		tsArg := len(args) + 1
		idArg := len(args) + 2
		conds = append(conds, fmt.Sprintf("(%s < $%d OR (%s = $%d AND %s > $%d))",
			fields.CreatedAtField, tsArg, fields.CreatedAtField, tsArg, fields.IDField, idArg))
		args = append(args, f.CreatedBefore, f.TieBreakID)
	}
	if f := result.SyncTokenFilter; f != nil && fields.UpdatedAtField != "" {
		sinceArg := len(args) + 1
		conds = append(conds, fmt.Sprintf("(%s > $%d OR %s > $%d)",
			fields.CreatedAtField, sinceArg, fields.UpdatedAtField, sinceArg))
		args = append(args, f.Since)
	}
	return conds, args
}
