// Package rig implements the optional rig frequency query (spec.md §6.1's
// get_summary_info, enriched with tuned-frequency reporting) via
// xylo04/goHamlib, so progress/summary output can show the radio's actual
// tuned frequency alongside the soundcard/SDR sample stream.
package rig

import (
	"fmt"

	"github.com/xylo04/goHamlib"
)

// Reporter queries a hamlib-controlled rig's tuned frequency on demand. It
// is an optional collaborator: a nil *Reporter means "no rig configured,"
// and callers should skip frequency annotation entirely.
type Reporter struct {
	rig    goHamlib.Rig
	device string
}

// Open opens a hamlib rig by model number. device is not passed to hamlib:
// it is recorded on the Reporter and appears only in the error message.
func Open(modelID int, device string) (*Reporter, error) {
	r := goHamlib.Rig{}
	r.SetModel(modelID)
	if err := r.Open(); err != nil {
		return nil, fmt.Errorf("rig: opening model %d on %s: %w", modelID, device, err)
	}
	return &Reporter{rig: r, device: device}, nil
}

// FrequencyHz returns the rig's currently tuned frequency.
func (r *Reporter) FrequencyHz() (float64, error) {
	f, err := r.rig.GetFreq(goHamlib.VFOCurr)
	if err != nil {
		return 0, fmt.Errorf("rig: querying frequency: %w", err)
	}
	return f, nil
}

// Close releases the rig handle.
func (r *Reporter) Close() error {
	return r.rig.Close()
}
