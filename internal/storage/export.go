package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Ca      [][]*float64   `json:"ca,omitempty"`
	T       [][]*float64   `json:"t,omitempty"`
	Episode []EpisodeEntry `json:"episode,omitempty"`
}

type EpisodeEntry struct {
	Step     int      `json:"step"`
	Ca       *float64 `json:"ca"`
	T        *float64 `json:"t"`
	Tc       float64  `json:"tc"`
	Delta    *float64 `json:"delta,omitempty"`
	RawDelta *float64 `json:"raw_delta,omitempty"`
}

// jsonValue maps non-finite values to null; encoding/json rejects them.
func jsonValue(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func jsonRows(rows [][]float64) [][]*float64 {
	out := make([][]*float64, len(rows))
	for i, row := range rows {
		out[i] = make([]*float64, len(row))
		for j, v := range row {
			out[i][j] = jsonValue(v)
		}
	}
	return out
}

// ExportJSON writes a stored run, metadata and data, as indented JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta}

	switch meta.Kind {
	case KindSimulate:
		ens, err := s.LoadEnsemble(runID)
		if err != nil {
			return err
		}
		data.Ca = jsonRows(ens.Ca)
		data.T = jsonRows(ens.T)
	case KindControl:
		ep, err := s.LoadEpisode(runID)
		if err != nil {
			return err
		}
		data.Episode = make([]EpisodeEntry, len(ep.States))
		for i, x := range ep.States {
			entry := EpisodeEntry{
				Step: i,
				Ca:   jsonValue(x[dynamo.Ca]),
				T:    jsonValue(x[dynamo.T]),
				Tc:   ep.Tc[i],
			}
			if i > 0 {
				entry.Delta = jsonValue(ep.Deltas[i-1])
				entry.RawDelta = jsonValue(ep.RawDeltas[i-1])
			}
			data.Episode[i] = entry
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
