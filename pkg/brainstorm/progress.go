package brainstorm

// Progress is the display-oriented derivation of a session's stage state.
type Progress struct {
	// CurrentIndex is the zero-based index of the current phase in the
	// declared order; 0 when the session has not started.
	CurrentIndex int
	// TotalPhases is the number of phases the session carries.
	TotalPhases int
	// Completed holds one flag per phase, in declared order.
	Completed []bool
	// Names holds the display names of the phases, in declared order.
	Names []string
}

// DeriveProgress recomputes stage progress from a session snapshot. Pure; a
// session with zero phases yields a zero Progress.
func DeriveProgress(s Session) Progress {
	p := Progress{TotalPhases: len(s.Phases)}
	if len(s.Phases) == 0 {
		return p
	}

	p.Completed = make([]bool, len(s.Phases))
	p.Names = make([]string, len(s.Phases))
	for i, phase := range s.Phases {
		p.Completed[i] = phase.Status == PhaseStatusCompleted
		p.Names[i] = phase.Type.DisplayName()
	}

	if idx := PhaseIndex(s.CurrentPhase); idx >= 0 && idx < len(s.Phases) {
		p.CurrentIndex = idx
	}
	return p
}
