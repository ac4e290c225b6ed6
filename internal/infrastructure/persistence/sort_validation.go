package persistence

import (
	"strings"
)

// ImportHistorySortFields maps the sortable API fields of run history to
// their columns.
var ImportHistorySortFields = map[string]string{
	"started_at":   "started_at",
	"completed_at": "completed_at",
	"supplier":     "supplier",
	"status":       "status",
	"created":      "created_rows",
	"failed":       "failed_rows",
}

// sortOrder normalizes a direction to ASC or DESC. Anything else is DESC.
func sortOrder(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// sortColumn looks field up in allowed. Unknown or empty fields yield "".
func sortColumn(field string, allowed map[string]string) string {
	return allowed[strings.ToLower(strings.TrimSpace(field))]
}

// historyOrder builds the ORDER BY clause of a run history query. The
// default is most recent first; created_at always breaks ties.
func historyOrder(field, dir string) string {
	column := sortColumn(field, ImportHistorySortFields)
	if column == "" {
		return "started_at DESC NULLS LAST, created_at DESC"
	}
	order := column + " " + sortOrder(dir)
	if column == "started_at" || column == "completed_at" {
		order += " NULLS LAST"
	}
	return order + ", created_at DESC"
}
