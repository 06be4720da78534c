package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/nbody/internal/sim"
)

type ExportBody struct {
	Mass     float32    `json:"mass"`
	Position [3]float32 `json:"position"`
	Velocity [3]float32 `json:"velocity"`
}

type ExportFrame struct {
	Step   int          `json:"step"`
	Time   float64      `json:"time"`
	Bodies []ExportBody `json:"bodies"`
}

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Frames []ExportFrame `json:"frames"`
}

func NewExportData(meta RunMetadata, snapshots []sim.Snapshot) ExportData {
	data := ExportData{Run: meta, Frames: make([]ExportFrame, len(snapshots))}
	for i, snap := range snapshots {
		b := snap.Bodies
		frame := ExportFrame{Step: snap.Step, Time: snap.Time, Bodies: make([]ExportBody, b.Len())}
		for j := range frame.Bodies {
			x, y, z := b.Position(j)
			vx, vy, vz := b.Velocity(j)
			frame.Bodies[j] = ExportBody{
				Mass:     b.Masses[j],
				Position: [3]float32{x, y, z},
				Velocity: [3]float32{vx, vy, vz},
			}
		}
		data.Frames[i] = frame
	}
	return data
}

func ExportJSON(path string, meta RunMetadata, snapshots []sim.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, meta, snapshots)
}

func WriteJSON(w io.Writer, meta RunMetadata, snapshots []sim.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, snapshots))
}
