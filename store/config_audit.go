package store

import (
	"time"
)

type ConfigAuditEntry struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendConfigAudit records one changed config key.
func (db *DB) AppendConfigAudit(key, oldValue, newValue, actor string) error {
	_, err := db.Exec(db.Q(`INSERT INTO config_audit (config_key, old_value, new_value, actor) VALUES (?, ?, ?, ?)`),
		key, oldValue, newValue, actor)
	return err
}

// ListConfigAudit returns the newest entries first.
func (db *DB) ListConfigAudit(limit int) ([]*ConfigAuditEntry, error) {
	rows, err := db.Query(db.Q(`SELECT id, config_key, old_value, new_value, actor, created_at FROM config_audit ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*ConfigAuditEntry
	for rows.Next() {
		var e ConfigAuditEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Key, &e.OldValue, &e.NewValue, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
