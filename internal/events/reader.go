package events

import (
	"context"
	"database/sql"

	"sprintdeck/internal/domain"
)

// Tail returns the most recent events for an org, newest first.
func Tail(ctx context.Context, db *sql.DB, orgID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, ts, type, org_id, COALESCE(entity_kind,''), COALESCE(entity_id,''), payload_json
FROM events WHERE org_id=? ORDER BY id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OrgID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
