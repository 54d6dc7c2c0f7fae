package realtime

import (
	"context"
	"database/sql"
	"fmt"

	"teamhub-notifications/internal/common/database"
)

const triggerFunctionName = "notify_notification_change"

// pg_notify payloads are limited to 8000 bytes; oversized rows are reduced to
// their id.
const createTriggerFunction = `
CREATE OR REPLACE FUNCTION notify_notification_change() RETURNS trigger AS $$
DECLARE
	payload TEXT;
BEGIN
	payload := json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'row', row_to_json(NEW))::text;
	IF octet_length(payload) > 7900 THEN
		payload := json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'row', json_build_object('id', NEW.id))::text;
	END IF;
	PERFORM pg_notify('notification_changes', payload);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`

func triggerName(table string) string {
	return table + "_notify_change"
}

// InstallTriggers makes inserts on the watched tables emit notifications on
// NotifyChannel. It is idempotent.
func InstallTriggers(ctx context.Context, db *sql.DB) error {
	return database.InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTriggerFunction); err != nil {
			return fmt.Errorf("create trigger function: %w", err)
		}
		for _, table := range WatchedTables {
			drop := fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, triggerName(table), table)
			if _, err := tx.ExecContext(ctx, drop); err != nil {
				return fmt.Errorf("drop trigger on %s: %w", table, err)
			}
			create := fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT ON %s FOR EACH ROW EXECUTE FUNCTION %s()`,
				triggerName(table), table, triggerFunctionName)
			if _, err := tx.ExecContext(ctx, create); err != nil {
				return fmt.Errorf("create trigger on %s: %w", table, err)
			}
		}
		return nil
	})
}
