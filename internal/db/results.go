package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/patrol.report/internal/patrol"
)

// UnknownMapID is recorded for results saved without a map reference.
const UnknownMapID = "unknown"

// StoredResult is a saved run outcome.
type StoredResult struct {
	ResultID  string `json:"resultId"`
	CreatedAt string `json:"createdAt"`
	patrol.ResultRecord
}

// SaveResult stores rec under a new UUID.
func (db *DB) SaveResult(rec patrol.ResultRecord) (*patrol.SaveReceipt, error) {
	mapID := rec.MapID
	if mapID == "" {
		mapID = UnknownMapID
	}
	routes := rec.Routes
	if routes == nil {
		routes = []patrol.Route{}
	}
	routesJSON, err := json.Marshal(routes)
	if err != nil {
		return nil, err
	}
	statsJSON, err := json.Marshal(rec.Stats)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	createdAt := db.now()
	_, err = db.Exec(`
		INSERT INTO results (result_id, map_id, ranger_count, routes_json, stats_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, mapID, rec.RangerCount, string(routesJSON), string(statsJSON), createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}
	return &patrol.SaveReceipt{ResultID: id, CreatedAt: createdAt}, nil
}

const resultColumns = `result_id, map_id, ranger_count, routes_json, stats_json, created_at`

func scanResult(row rowScanner) (*StoredResult, error) {
	var r StoredResult
	var routes, stats string
	if err := row.Scan(&r.ResultID, &r.MapID, &r.RangerCount, &routes, &stats, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(routes), &r.Routes); err != nil {
		return nil, fmt.Errorf("result %s routes: %w", r.ResultID, err)
	}
	if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
		return nil, fmt.Errorf("result %s stats: %w", r.ResultID, err)
	}
	return &r, nil
}

// GetResult returns the result with id, or ErrNotFound.
func (db *DB) GetResult(id string) (*StoredResult, error) {
	r, err := scanResult(db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE result_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}
	return r, nil
}

// ListResultsForMap returns the results recorded against mapID, oldest first.
func (db *DB) ListResultsForMap(mapID string) ([]StoredResult, error) {
	rows, err := db.Query(`SELECT `+resultColumns+` FROM results WHERE map_id = ? ORDER BY created_at, rowid`, mapID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []StoredResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}
