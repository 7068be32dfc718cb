package audit

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/docxology/cellsql/internal/localdb"
	"github.com/docxology/cellsql/internal/logging"
)

const collection = "audit"

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Event is one recorded operator action.
type Event struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Detail     string `json:"detail,omitempty"`
	TS         string `json:"ts"`
}

// Append writes an audit event to the catalog. Do not include statement
// parameters or credentials in detail.
func Append(cat *localdb.Catalog, actor, action, entityType, entityID, detail string) {
	if cat == nil {
		return
	}
	ev := Event{
		ID:         uuid.NewString(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		TS:         time.Now().UTC().Format(tsLayout),
	}
	if err := cat.Put(collection, ev.ID, ev); err != nil {
		logging.Log.WithError(err).WithField("action", action).Warn("audit append failed")
	}
}

// List returns up to limit events, newest first. limit <= 0 returns all.
func List(cat *localdb.Catalog, limit int) ([]Event, error) {
	var out []Event
	if cat == nil {
		return out, nil
	}
	if err := cat.List(collection, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
