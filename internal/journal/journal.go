package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types written by a session.
const (
	TypeSetup   = "session.setup"
	TypeCommand = "session.command"
)

// Event is one journal row.
type Event struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind,omitempty"`
	Input     string `json:"input,omitempty"`
	IsError   bool   `json:"is_error"`
	TaskCount int    `json:"task_count"`
	Payload   string `json:"payload_json"`
}

type Payload map[string]any

// Journal appends and reads session events in the journal database.
type Journal struct {
	DB  *sql.DB
	Now func() time.Time
}

func New(db *sql.DB) Journal {
	return Journal{DB: db, Now: time.Now}
}

func (j Journal) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Append stores e. TS is filled in when empty.
func (j Journal) Append(ctx context.Context, e Event, payload Payload) error {
	if e.TS == "" {
		e.TS = j.now().UTC().Format(time.RFC3339)
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = j.DB.ExecContext(ctx, `INSERT INTO events(ts,type,session_id,kind,input,is_error,task_count,payload_json) VALUES (?,?,?,?,?,?,?,?)`,
		e.TS, e.Type, e.SessionID, e.Kind, e.Input, boolInt(e.IsError), e.TaskCount, string(data))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Filter narrows Latest.
type Filter struct {
	SessionID  string
	Type       string
	Kind       string
	ErrorsOnly bool
}

// Latest returns up to limit events, newest first. A limit of zero or less
// means 20.
func (j Journal) Latest(ctx context.Context, limit int, f Filter) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	clauses := []string{"1=1"}
	var args []any
	if f.SessionID != "" {
		clauses = append(clauses, "session_id=?")
		args = append(args, f.SessionID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.ErrorsOnly {
		clauses = append(clauses, "is_error=1")
	}
	query := fmt.Sprintf(`SELECT id,ts,type,session_id,kind,input,is_error,task_count,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := j.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		var isErr int
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.SessionID, &e.Kind, &e.Input, &isErr, &e.TaskCount, &e.Payload); err != nil {
			return nil, err
		}
		e.IsError = isErr != 0
		res = append(res, e)
	}
	return res, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
