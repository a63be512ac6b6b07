package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/patrol"
)

// DefaultMapName is stored when a map is saved without a name.
const DefaultMapName = "Untitled Map"

// SaveMap stores rec under a new UUID.
func (db *DB) SaveMap(rec patrol.MapRecord) (*patrol.SaveReceipt, error) {
	if err := rec.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map: %w", err)
	}
	name := rec.Name
	if name == "" {
		name = DefaultMapName
	}

	terrain, err := json.Marshal(rec.Terrain)
	if err != nil {
		return nil, err
	}
	risk, err := json.Marshal(rec.Risk)
	if err != nil {
		return nil, err
	}
	animals, err := json.Marshal(rec.Animals)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	createdAt := db.now()
	_, err = db.Exec(`
		INSERT INTO maps (map_id, name, grid_size, terrain_json, risk_json, animal_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, rec.Size, string(terrain), string(risk), string(animals), createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert map: %w", err)
	}
	return &patrol.SaveReceipt{MapID: id, CreatedAt: createdAt}, nil
}

const mapColumns = `map_id, name, grid_size, terrain_json, risk_json, animal_json, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMap(row rowScanner) (*patrol.SavedMap, error) {
	var m patrol.SavedMap
	var terrain, risk, animals string
	if err := row.Scan(&m.MapID, &m.Name, &m.Size, &terrain, &risk, &animals, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(terrain), &m.Terrain); err != nil {
		return nil, fmt.Errorf("map %s terrain: %w", m.MapID, err)
	}
	if err := json.Unmarshal([]byte(risk), &m.Risk); err != nil {
		return nil, fmt.Errorf("map %s risk: %w", m.MapID, err)
	}
	if err := json.Unmarshal([]byte(animals), &m.Animals); err != nil {
		return nil, fmt.Errorf("map %s animals: %w", m.MapID, err)
	}
	return &m, nil
}

// GetMap returns the map with id, or ErrNotFound.
func (db *DB) GetMap(id string) (*patrol.SavedMap, error) {
	m, err := scanMap(db.QueryRow(`SELECT `+mapColumns+` FROM maps WHERE map_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get map %s: %w", id, err)
	}
	return m, nil
}

// ListMaps returns every stored map, newest first.
func (db *DB) ListMaps() ([]patrol.SavedMap, error) {
	rows, err := db.Query(`SELECT ` + mapColumns + ` FROM maps ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	maps := []patrol.SavedMap{}
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, *m)
	}
	return maps, rows.Err()
}

// LoadModel fetches a stored map as a validated grid model.
func (db *DB) LoadModel(id string) (*grid.Model, error) {
	m, err := db.GetMap(id)
	if err != nil {
		return nil, err
	}
	model := m.Model
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("stored map %s: %w", id, err)
	}
	return &model, nil
}
