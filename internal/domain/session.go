package domain

import (
	"strings"
	"time"
)

// Phase is a named stage of sandbox provisioning.
type Phase string

const (
	PhaseStarting          Phase = "starting"
	PhasePullingImage      Phase = "pulling_image"
	PhaseCreatingVolume    Phase = "creating_volume"
	PhaseCreatingContainer Phase = "creating_container"
	PhaseStartingContainer Phase = "starting_container"
	PhaseReady             Phase = "ready"
	PhaseError             Phase = "error"
)

// phaseRank orders the success path. PhaseError sits above everything so no
// report can move a failed session.
var phaseRank = map[Phase]int{
	PhaseStarting:          0,
	PhasePullingImage:      1,
	PhaseCreatingVolume:    2,
	PhaseCreatingContainer: 3,
	PhaseStartingContainer: 4,
	PhaseReady:             5,
	PhaseError:             6,
}

// phaseAliases maps a normalized wire form (lowercase, separators removed) to a Phase.
var phaseAliases = map[string]Phase{
	"starting":          PhaseStarting,
	"pullingimage":      PhasePullingImage,
	"creatingvolume":    PhaseCreatingVolume,
	"creatingcontainer": PhaseCreatingContainer,
	"startingcontainer": PhaseStartingContainer,
	"ready":             PhaseReady,
	"error":             PhaseError,
	"failed":            PhaseError,
}

// ParsePhase converts a backend phase string into a Phase. Matching ignores case
// and the separators '_', '-' and ' ', so "PullingImage" and "pulling-image" agree.
func ParsePhase(s string) (Phase, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	p, ok := phaseAliases[key]
	return p, ok
}

// Rank returns the position of p on the success path, or -1 for unknown phases.
func (p Phase) Rank() int {
	if r, ok := phaseRank[p]; ok {
		return r
	}
	return -1
}

// IsTerminal reports whether p ends provisioning.
func (p Phase) IsTerminal() bool {
	return p == PhaseReady || p == PhaseError
}

// Label returns a human-readable phase name.
func (p Phase) Label() string {
	switch p {
	case PhaseStarting:
		return "Starting"
	case PhasePullingImage:
		return "Pulling image"
	case PhaseCreatingVolume:
		return "Creating volume"
	case PhaseCreatingContainer:
		return "Creating container"
	case PhaseStartingContainer:
		return "Starting container"
	case PhaseReady:
		return "Ready"
	case PhaseError:
		return "Error"
	default:
		return string(p)
	}
}

// Progress is optional provisioning progress. A nil Percent means the
// consumer must show an indeterminate indication, never 0%.
type Progress struct {
	Percent *int
	ETA     *time.Duration
}

// Indeterminate reports whether no percentage is known.
func (p *Progress) Indeterminate() bool {
	return p == nil || p.Percent == nil
}

// Session is a value snapshot of a provisioning session.
type Session struct {
	ID        string
	Phase     Phase
	Message   string
	Progress  *Progress
	Error     string
	UpdatedAt time.Time
}

// NewSession returns the initial snapshot for a freshly created session.
func NewSession(id string, now time.Time) Session {
	return Session{ID: id, Phase: PhaseStarting, UpdatedAt: now}
}

// IsTerminal reports whether the session reached Ready or Error.
func (s Session) IsTerminal() bool { return s.Phase.IsTerminal() }

// StatusReport is the decoded body of a session status query.
type StatusReport struct {
	Phase    string          `json:"phase"`
	Message  string          `json:"message,omitempty"`
	Progress *ReportProgress `json:"progress,omitempty"`
	Ready    bool            `json:"ready"`
	Error    string          `json:"error,omitempty"`
}

// ReportProgress is the wire form of Progress.
type ReportProgress struct {
	Percent *float64 `json:"percent,omitempty"`
	EtaMs   *int64   `json:"etaMs,omitempty"`
}

// Apply merges a status report into s and returns the new snapshot.
// A terminal snapshot is returned unchanged. Regressions and unknown
// phase strings keep the current phase; message and progress always
// follow the latest report.
func (s Session) Apply(r StatusReport, now time.Time) Session {
	if s.IsTerminal() {
		return s
	}
	next := s
	next.Message = r.Message
	next.Progress = r.Progress.toProgress()
	next.UpdatedAt = now

	reported, known := ParsePhase(r.Phase)
	switch {
	case reported == PhaseError || r.Error != "":
		next.Phase = PhaseError
		next.Error = r.Error
		if next.Error == "" {
			next.Error = r.Message
		}
		if next.Error == "" {
			next.Error = "sandbox provisioning failed"
		}
	case r.Ready:
		next.Phase = PhaseReady
	case known && reported.Rank() > s.Phase.Rank():
		next.Phase = reported
	}
	return next
}

func (rp *ReportProgress) toProgress() *Progress {
	if rp == nil || (rp.Percent == nil && rp.EtaMs == nil) {
		return nil
	}
	p := &Progress{}
	if rp.Percent != nil {
		pct := min(max(int(*rp.Percent+0.5), 0), 100)
		p.Percent = &pct
	}
	if rp.EtaMs != nil && *rp.EtaMs >= 0 {
		eta := time.Duration(*rp.EtaMs) * time.Millisecond
		p.ETA = &eta
	}
	return p
}

// LifecycleState is the caller-facing orchestrator state.
type LifecycleState int

const (
	LifecycleIdle LifecycleState = iota
	LifecycleCreating
	LifecyclePolling
	LifecycleReady
	LifecycleFailed
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleIdle:
		return "idle"
	case LifecycleCreating:
		return "creating"
	case LifecyclePolling:
		return "polling"
	case LifecycleReady:
		return "ready"
	case LifecycleFailed:
		return "failed"
	default:
		return "unknown"
	}
}
