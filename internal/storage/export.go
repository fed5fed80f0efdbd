package storage

import (
	"encoding/json"
	"io"
)

type ExportFrame struct {
	Step      int          `json:"step"`
	Time      float64      `json:"time"`
	Positions [][3]float64 `json:"positions"`
}

type ExportData struct {
	Run    RunMetadata          `json:"run"`
	Frames []ExportFrame        `json:"frames"`
	Series map[string][]float64 `json:"series"`
}

// ExportJSON writes a stored run, frames and series included, as one
// indented JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}
	series, err := s.LoadSeries(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Run:    *meta,
		Frames: make([]ExportFrame, len(frames)),
		Series: series,
	}
	for i, f := range frames {
		ef := ExportFrame{Step: f.Step, Time: f.Time, Positions: make([][3]float64, len(f.Positions))}
		for j, p := range f.Positions {
			ef.Positions[j] = [3]float64{p.X, p.Y, p.Z}
		}
		data.Frames[i] = ef
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
