// Package storage keeps finished runs on disk: one directory per run with
// a metadata.json and a states.csv holding every snapshot, one row per body.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/sim"
)

var ErrRunNotFound = errors.New("storage: run not found")

var stateHeader = []string{"step", "time", "body", "mass", "x", "y", "z", "vx", "vy", "vz"}

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
	ID             string             `json:"id"`
	Implementation string             `json:"implementation"`
	Scenario       string             `json:"scenario"`
	Timestamp      time.Time          `json:"timestamp"`
	Seed           uint64             `json:"seed"`
	Bodies         int                `json:"bodies"`
	Dt             float64            `json:"dt"`
	Steps          int                `json:"steps"`
	Softening      float64            `json:"softening"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	MeanStepMicros float64            `json:"mean_step_us"`
	EnergyDrift    float64            `json:"energy_drift"`
	Metrics        map[string]float64 `json:"metrics"`
}

// MetadataFromResult fills the timing and energy fields of meta from r.
func MetadataFromResult(meta RunMetadata, r *sim.Result) RunMetadata {
	meta.Implementation = r.Implementation
	meta.Bodies = r.NumBodies
	meta.Steps = r.StepsTaken
	meta.ElapsedSeconds = r.Elapsed.Seconds()
	meta.MeanStepMicros = float64(r.MeanStep()) / float64(time.Microsecond)
	meta.EnergyDrift = r.EnergyDrift
	meta.Metrics = r.Metrics
	return meta
}

// Save writes a new run directory and returns its ID. The ID and timestamp
// of meta are assigned here.
func (s *Store) Save(meta RunMetadata, snapshots []sim.Snapshot) (string, error) {
	now := time.Now()
	name := meta.Scenario
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%s_%d", name, meta.Implementation, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteStates(csvFile, snapshots); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteStates encodes snapshots as CSV with a header row.
func WriteStates(out io.Writer, snapshots []sim.Snapshot) error {
	w := csv.NewWriter(out)
	if err := w.Write(stateHeader); err != nil {
		return err
	}

	row := make([]string, len(stateHeader))
	for _, snap := range snapshots {
		b := snap.Bodies
		for i := 0; i < b.Len(); i++ {
			row[0] = strconv.Itoa(snap.Step)
			row[1] = strconv.FormatFloat(snap.Time, 'g', -1, 64)
			row[2] = strconv.Itoa(i)
			row[3] = formatFloat32(b.Masses[i])
			for k := 0; k < 3; k++ {
				row[4+k] = formatFloat32(b.Positions[3*i+k])
				row[7+k] = formatFloat32(b.Velocities[3*i+k])
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// List returns every readable run, oldest first. Directories without
// valid metadata are skipped.
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

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode %s metadata: %w", runID, err)
	}
	return &meta, nil
}

// LoadSnapshots rebuilds the snapshots of a run from its states.csv.
func (s *Store) LoadSnapshots(runID string) ([]sim.Snapshot, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadStates(file)
}

// ReadStates decodes what WriteStates produced. Rows of one snapshot must
// be contiguous and list bodies in order.
func ReadStates(in io.Reader) ([]sim.Snapshot, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = len(stateHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: read states: %w", err)
	}
	if len(records) < 2 {
		return []sim.Snapshot{}, nil
	}

	snapshots := make([]sim.Snapshot, 0)
	for line, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("storage: line %d: step: %w", line+2, err)
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: line %d: time: %w", line+2, err)
		}
		body, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("storage: line %d: body: %w", line+2, err)
		}

		var vals [7]float32
		for k := range vals {
			v, err := strconv.ParseFloat(record[3+k], 32)
			if err != nil {
				return nil, fmt.Errorf("storage: line %d: %s: %w", line+2, stateHeader[3+k], err)
			}
			vals[k] = float32(v)
		}

		if body == 0 {
			snapshots = append(snapshots, sim.Snapshot{Step: step, Time: t})
		}
		if len(snapshots) == 0 {
			return nil, fmt.Errorf("storage: line %d: snapshot does not start at body 0", line+2)
		}
		cur := &snapshots[len(snapshots)-1]
		if cur.Step != step || body != cur.Bodies.Len() {
			return nil, fmt.Errorf("storage: line %d: body %d of step %d out of order", line+2, body, step)
		}

		cur.Bodies.Masses = append(cur.Bodies.Masses, vals[0])
		cur.Bodies.Positions = append(cur.Bodies.Positions, vals[1], vals[2], vals[3])
		cur.Bodies.Velocities = append(cur.Bodies.Velocities, vals[4], vals[5], vals[6])
	}
	return snapshots, nil
}

// LastBodies returns the final stored state of a run, used to resume it.
func (s *Store) LastBodies(runID string) (physics.Bodies, error) {
	snaps, err := s.LoadSnapshots(runID)
	if err != nil {
		return physics.Bodies{}, err
	}
	if len(snaps) == 0 {
		return physics.Bodies{}, fmt.Errorf("storage: run %s has no snapshots", runID)
	}
	return snaps[len(snaps)-1].Bodies, nil
}
