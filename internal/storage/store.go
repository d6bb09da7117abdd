package storage

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/sim"
)

const (
	KindSimulate = "simulate"
	KindControl  = "control"

	catalogFile  = "catalog.db"
	metadataFile = "metadata.json"
	caFile       = "ca.csv"
	tFile        = "t.csv"
	episodeFile  = "episode.csv"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrRunNotFound = errors.New("storage: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	preset       TEXT,
	integrator   TEXT NOT NULL,
	controller   TEXT,
	seed         INTEGER NOT NULL,
	noise        REAL NOT NULL,
	steps        INTEGER NOT NULL,
	repetitions  INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created ON runs(created_at);
`

// Store keeps one directory per run under baseDir plus a SQLite catalog
// indexing them.
type Store struct {
	baseDir string
	db      *sql.DB
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory and opens the catalog.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", filepath.Join(s.baseDir, catalogFile))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Preset      string             `json:"preset,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Noise       float64            `json:"noise"`
	Steps       int                `json:"steps"`
	Repetitions int                `json:"repetitions"`
	Integrator  string             `json:"integrator"`
	Controller  string             `json:"controller,omitempty"`
	Trace       []float64          `json:"trace,omitempty"`
	Failed      []int              `json:"failed,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// SaveEnsemble writes an open-loop batch. Each channel is stored as one CSV
// row per repetition.
func (s *Store) SaveEnsemble(meta RunMetadata, ens *sim.Ensemble) (string, error) {
	meta.Kind = KindSimulate
	meta.Repetitions = ens.Len()
	meta.Steps = ens.Steps()
	meta.Failed = ens.Failed

	return s.saveRun(&meta, func(runDir string) error {
		if err := writeMatrix(filepath.Join(runDir, caFile), ens.Ca); err != nil {
			return err
		}
		return writeMatrix(filepath.Join(runDir, tFile), ens.T)
	})
}

// SaveEpisode writes a closed-loop run as one CSV row per step.
func (s *Store) SaveEpisode(meta RunMetadata, ep *sim.Episode) (string, error) {
	meta.Kind = KindControl
	meta.Repetitions = 1
	meta.Steps = ep.Len()
	meta.Metrics = finiteMetrics(ep.Metrics)

	return s.saveRun(&meta, func(runDir string) error {
		return writeEpisode(filepath.Join(runDir, episodeFile), ep)
	})
}

// saveRun creates the run directory, writes its data and catalogs it. On
// any failure the directory is removed so no partial run is listed.
func (s *Store) saveRun(meta *RunMetadata, write func(runDir string) error) (string, error) {
	runDir, err := s.createRun(meta)
	if err == nil {
		err = write(runDir)
	}
	if err == nil {
		err = s.catalog(*meta)
	}
	if err != nil {
		if runDir != "" {
			os.RemoveAll(runDir)
		}
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) createRun(meta *RunMetadata) (string, error) {
	meta.ID = uuid.New().String()
	meta.Timestamp = time.Now().UTC()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return runDir, err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return runDir, err
	}
	return runDir, nil
}

func (s *Store) catalog(meta RunMetadata) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, kind, preset, integrator, controller, seed, noise, steps, repetitions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Kind, meta.Preset, meta.Integrator, meta.Controller,
		meta.Seed, meta.Noise, meta.Steps, meta.Repetitions, meta.Timestamp.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("catalog run: %w", err)
	}
	return nil
}

// List returns stored runs, newest first. Without an open catalog it falls
// back to scanning run directories.
func (s *Store) List() ([]RunMetadata, error) {
	if s.db == nil {
		return s.scan()
	}

	rows, err := s.db.Query(`SELECT run_id FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.Load(id)
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) scan() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadEnsemble(runID string) (*sim.Ensemble, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindSimulate {
		return nil, fmt.Errorf("run %s is a %s run", runID, meta.Kind)
	}

	runDir := filepath.Join(s.baseDir, runID)
	ca, err := readMatrix(filepath.Join(runDir, caFile))
	if err != nil {
		return nil, err
	}
	temp, err := readMatrix(filepath.Join(runDir, tFile))
	if err != nil {
		return nil, err
	}
	if len(ca) != len(temp) {
		return nil, fmt.Errorf("run %s: %w", runID, dynamo.ErrDimensionMismatch)
	}
	return &sim.Ensemble{Ca: ca, T: temp, Failed: meta.Failed}, nil
}

func (s *Store) LoadEpisode(runID string) (*sim.Episode, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindControl {
		return nil, fmt.Errorf("run %s is a %s run", runID, meta.Kind)
	}

	ep, err := readEpisode(filepath.Join(s.baseDir, runID, episodeFile))
	if err != nil {
		return nil, err
	}
	ep.Metrics = meta.Metrics
	return ep, nil
}

// finiteMetrics drops values encoding/json cannot represent.
func finiteMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeMatrix(path string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(rows) > 0 {
		header := make([]string, len(rows[0]))
		for i := range header {
			header[i] = fmt.Sprintf("s%d", i)
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatFloat(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readMatrix(path string) ([][]float64, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, nil
	}

	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %d: %w", filepath.Base(path), i+1, j, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var episodeHeader = []string{"step", "ca", "t", "tc", "delta", "raw_delta"}

func writeEpisode(path string, ep *sim.Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(episodeHeader); err != nil {
		return err
	}
	for i, x := range ep.States {
		rec := []string{
			strconv.Itoa(i),
			formatFloat(x[dynamo.Ca]),
			formatFloat(x[dynamo.T]),
			formatFloat(ep.Tc[i]),
			"",
			"",
		}
		// step 0 is the starting point and has no applied delta
		if i > 0 {
			rec[4] = formatFloat(ep.Deltas[i-1])
			rec[5] = formatFloat(ep.RawDeltas[i-1])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readEpisode(path string) (*sim.Episode, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	ep := &sim.Episode{}
	for i, record := range records {
		if i == 0 {
			continue
		}
		if len(record) != len(episodeHeader) {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i, dynamo.ErrDimensionMismatch)
		}
		vals := make([]float64, 3)
		for j := range vals {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i, err)
			}
			vals[j] = v
		}
		ep.States = append(ep.States, dynamo.State{vals[0], vals[1]})
		ep.Tc = append(ep.Tc, vals[2])
		if i == 1 {
			continue
		}
		delta, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i, err)
		}
		raw, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i, err)
		}
		ep.Deltas = append(ep.Deltas, delta)
		ep.RawDeltas = append(ep.RawDeltas, raw)
	}
	return ep, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
