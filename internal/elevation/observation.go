package elevation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/edgetrack/internal/edge"
)

// maxObservationLine bounds one JSONL record. A 400x400 float map is a few
// megabytes of text.
const maxObservationLine = 64 * 1024 * 1024

// Observation is one robot pose and the elevation map captured with it.
type Observation struct {
	Stamp float64 // seconds; informational
	Pose  edge.Pose
	Map   *Grid
}

type poseJSON struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

type mapJSON struct {
	Resolution float64    `json:"resolution"`
	SizeX      int        `json:"size_x"`
	SizeY      int        `json:"size_y"`
	Position   [2]float64 `json:"position"`
	Data       []*float64 `json:"data"` // row-major by i; null is unknown
}

type observationJSON struct {
	Stamp float64  `json:"stamp,omitempty"`
	Pose  poseJSON `json:"pose"`
	Map   *mapJSON `json:"map"`
}

// MarshalJSON encodes the observation with unknown cells as null.
func (o Observation) MarshalJSON() ([]byte, error) {
	if o.Map == nil {
		return nil, fmt.Errorf("%w: observation has no map", ErrInvalidMap)
	}
	cells := make([]*float64, len(o.Map.data))
	for k := range o.Map.data {
		if v := o.Map.data[k]; !math.IsNaN(v) {
			cells[k] = &v
		}
	}
	return json.Marshal(observationJSON{
		Stamp: o.Stamp,
		Pose:  poseJSON{X: o.Pose.X, Y: o.Pose.Y, Yaw: o.Pose.Yaw},
		Map: &mapJSON{
			Resolution: o.Map.Resolution,
			SizeX:      o.Map.SizeX,
			SizeY:      o.Map.SizeY,
			Position:   [2]float64{o.Map.Position.X, o.Map.Position.Y},
			Data:       cells,
		},
	})
}

// UnmarshalJSON decodes and validates an observation.
func (o *Observation) UnmarshalJSON(b []byte) error {
	var raw observationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Map == nil {
		return fmt.Errorf("%w: observation has no map", ErrInvalidMap)
	}

	data := make([]float64, len(raw.Map.Data))
	for k, v := range raw.Map.Data {
		if v == nil {
			data[k] = math.NaN()
			continue
		}
		data[k] = *v
	}
	grid, err := NewGridFromData(raw.Map.Resolution, raw.Map.SizeX, raw.Map.SizeY,
		r2.Vec{X: raw.Map.Position[0], Y: raw.Map.Position[1]}, data)
	if err != nil {
		return err
	}

	o.Stamp = raw.Stamp
	o.Pose = edge.Pose{X: raw.Pose.X, Y: raw.Pose.Y, Yaw: raw.Pose.Yaw}
	o.Map = grid
	return nil
}

// DecodeObservations reads newline-delimited JSON observations. Blank lines
// are skipped. Errors name the offending line.
func DecodeObservations(r io.Reader) ([]Observation, error) {
	var out []Observation
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxObservationLine)

	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var obs Observation
		if err := json.Unmarshal(b, &obs); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, obs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return out, nil
}

// EncodeObservations writes observations as newline-delimited JSON.
func EncodeObservations(w io.Writer, obs []Observation) error {
	enc := json.NewEncoder(w)
	for i, o := range obs {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return nil
}
