package model

import (
	"errors"
	"fmt"
)

var (
	// ErrJobTooLarge means a job does not fit the panel in any allowed orientation.
	ErrJobTooLarge = errors.New("job too large for panel")
	// ErrNoFeasiblePlacement means no arrangement of the jobs fits the panel.
	ErrNoFeasiblePlacement = errors.New("no feasible placement")
	// ErrOutlineInvalid means a board outline is not a closed simple polygon
	// with positive area.
	ErrOutlineInvalid = errors.New("invalid board outline")
	// ErrUnsupportedApertureMacro means an aperture macro uses parameters
	// or operators other than the octagon special case.
	ErrUnsupportedApertureMacro = errors.New("unsupported aperture macro")
	// ErrToolCountOverflow means more drill sizes exist than the fabrication
	// drawing can letter.
	ErrToolCountOverflow = errors.New("too many tools for fabrication drawing")
	// ErrPanelExceeded means the merged job plus margins is larger than the panel.
	ErrPanelExceeded = errors.New("merged job exceeds panel dimensions")
)

// JobTooLargeError names the job that cannot be placed.
type JobTooLargeError struct {
	Job                     string
	Width, Height           float64
	PanelWidth, PanelHeight float64
}

func (e *JobTooLargeError) Error() string {
	return fmt.Sprintf("job %s (%gx%g) does not fit usable panel area %gx%g",
		e.Job, e.Width, e.Height, e.PanelWidth, e.PanelHeight)
}

func (e *JobTooLargeError) Unwrap() error { return ErrJobTooLarge }

// OutlineError describes why a job's outline was rejected.
type OutlineError struct {
	Job    string
	Reason string
}

func (e *OutlineError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.Job, e.Reason, ErrOutlineInvalid)
}

func (e *OutlineError) Unwrap() error { return ErrOutlineInvalid }

// MacroError names the job and aperture code using an unsupported macro.
type MacroError struct {
	Job   string
	Code  string
	Macro string
}

func (e *MacroError) Error() string {
	return fmt.Sprintf("job %s: aperture %s uses macro %s: %v", e.Job, e.Code, e.Macro, ErrUnsupportedApertureMacro)
}

func (e *MacroError) Unwrap() error { return ErrUnsupportedApertureMacro }
