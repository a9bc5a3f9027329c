package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

// checkVersionedWrite tells a lost optimistic race apart from a missing row
// when a conditional write touched nothing.
func checkVersionedWrite(ctx context.Context, exec SQLExecutor, result sql.Result, table, id string, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := exec.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s %s existence: %w", table, id, err)
	}
	if !exists {
		return notFoundError
	}
	return fmt.Errorf("%w: %s %s", models.ErrVersionConflict, table, id)
}

func encodeDocument(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return body, nil
}

func decodeDocument(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func limitClause(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
