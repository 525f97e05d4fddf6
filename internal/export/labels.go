package export

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/piwi3910/gerbmerge/internal/model"
	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the printed QR code size in mm.
const qrSize = 30.0

// PanelLabel holds the data encoded into the panel's QR code.
type PanelLabel struct {
	ID        string      `json:"id"`
	Units     model.Units `json:"units"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Jobs      []string    `json:"jobs"`
	Instances int         `json:"instances"`
	Tools     int         `json:"tools"`
	DrillHits int         `json:"drill_hits"`
}

// NewPanelLabel summarizes panel for its QR code. Jobs are listed once each,
// sorted by name.
func NewPanelLabel(panel *model.Panel, stats Stats) PanelLabel {
	seen := make(map[string]bool)
	var jobs []string
	for _, inst := range panel.Instances {
		if !seen[inst.Job] {
			seen[inst.Job] = true
			jobs = append(jobs, inst.Job)
		}
	}
	sort.Strings(jobs)
	return PanelLabel{
		ID:        panel.ID,
		Units:     panel.Units,
		Width:     panel.Width,
		Height:    panel.Height,
		Jobs:      jobs,
		Instances: len(panel.Instances),
		Tools:     len(stats.Tools),
		DrillHits: stats.DrillHits,
	}
}

// QRCode encodes info as JSON into a PNG QR code of size pixels.
func QRCode(info PanelLabel, size int) ([]byte, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal panel label: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}
