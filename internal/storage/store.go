package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/config"
	"github.com/san-kum/pbfsim/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
	seriesFile   = "series.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Particles  int                `json:"particles"`
	Dt         float64            `json:"dt"`
	Frames     int                `json:"frames"`
	Iterations int                `json:"iterations"`
	Extensions []string           `json:"extensions"`
	Elapsed    time.Duration      `json:"elapsed_ns"`
	Params     map[string]float64 `json:"params"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding metadata.json, frames.csv with one
// row per recorded particle position and series.csv with one row per frame.
func (s *Store) Save(cfg *config.Config, seed int64, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d_s%d", cfg.Scene, now.UnixNano(), seed)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scene:      cfg.Scene,
		Timestamp:  now,
		Seed:       seed,
		Particles:  cfg.Fluid.Particles,
		Dt:         cfg.Fluid.Dt,
		Frames:     result.StepsTaken,
		Iterations: cfg.Fluid.Iterations,
		Extensions: cfg.Extensions,
		Elapsed:    result.Elapsed,
		Params:     cfg.GetParams(),
		Metrics:    result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeFrames(filepath.Join(runDir, framesFile), result.Frames); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, seriesFile), result.Series); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeFrames(path string, frames []dynamo.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"frame", "time", "particle", "x", "y", "z"}); err != nil {
		return err
	}
	for _, snap := range frames {
		step := strconv.Itoa(snap.Step)
		t := formatFloat(snap.Time)
		for i, p := range snap.Positions {
			row := []string{step, t, strconv.Itoa(i), formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func seriesNames(series map[string][]float64) []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeSeries(path string, series map[string][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	names := seriesNames(series)
	rows := 0
	for _, name := range names {
		rows = max(rows, len(series[name]))
	}

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"frame"}, names...)); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		row := []string{strconv.Itoa(i + 1)}
		for _, name := range names {
			if i < len(series[name]) {
				row = append(row, formatFloat(series[name][i]))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// LoadFrames reads the recorded snapshots of a run in file order.
func (s *Store) LoadFrames(runID string) ([]dynamo.Snapshot, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}

	frames := make([]dynamo.Snapshot, 0)
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 6 {
			return nil, fmt.Errorf("%s line %d: expected 6 fields, got %d", framesFile, i+1, len(record))
		}

		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+1, err)
		}
		var vals [4]float64
		for k, field := range []string{record[1], record[3], record[4], record[5]} {
			if vals[k], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", framesFile, i+1, err)
			}
		}

		if len(frames) == 0 || frames[len(frames)-1].Step != step {
			frames = append(frames, dynamo.Snapshot{Step: step, Time: vals[0]})
		}
		last := &frames[len(frames)-1]
		last.Positions = append(last.Positions, r3.Vec{X: vals[1], Y: vals[2], Z: vals[3]})
	}
	return frames, nil
}

// LoadSeries reads the per-frame metric values of a run keyed by metric name.
func (s *Store) LoadSeries(runID string) (map[string][]float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, err
	}

	series := make(map[string][]float64)
	if len(records) == 0 {
		return series, nil
	}

	header := records[0]
	for _, name := range header[1:] {
		series[name] = make([]float64, 0, len(records)-1)
	}
	for _, record := range records[1:] {
		for j := 1; j < len(record) && j < len(header); j++ {
			if record[j] == "" {
				continue
			}
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			series[header[j]] = append(series[header[j]], v)
		}
	}
	return series, nil
}
