package motion

// CyclePolicy turns position observations into completed cycles.
type CyclePolicy interface {
	// Observe records a position and reports whether it completed a cycle.
	Observe(pos int) bool
	// Cycles returns the number of completed cycles.
	Cycles() int
}

// LegPolicy is a CyclePolicy for oscillation runs. It also picks the
// endpoint of every leg; Observe is called with the endpoint reached.
type LegPolicy interface {
	CyclePolicy
	Next() int
}

// StartTargets picks the endpoint nearer to pos as the first target. On a
// tie x2 goes first.
func StartTargets(pos, x1, x2 int) (first, other int) {
	if abs(pos-x1) < abs(pos-x2) {
		return x1, x2
	}
	return x2, x1
}

// NewLegPolicy returns the oscillation policy named by kind.
func NewLegPolicy(kind PolicyKind, first, other int) LegPolicy {
	if kind == PolicyAnchor {
		return NewAnchorRevisit(first, other)
	}
	return NewTripleMove(first, other)
}

// TripleMove runs first -> other -> first and counts every such triple as
// one cycle, so each cycle issues three position commands.
type TripleMove struct {
	legs   [3]int
	n      int
	cycles int
}

func NewTripleMove(first, other int) *TripleMove {
	return &TripleMove{legs: [3]int{first, other, first}}
}

func (t *TripleMove) Next() int { return t.legs[t.n%3] }

func (t *TripleMove) Observe(int) bool {
	t.n++
	if t.n%3 == 0 {
		t.cycles++
		return true
	}
	return false
}

func (t *TripleMove) Cycles() int { return t.cycles }

// AnchorRevisit alternates between the endpoints. The first endpoint is the
// anchor: its initial arrival is not counted, and afterwards a cycle
// completes on every anchor arrival that follows a visit to the other
// endpoint.
type AnchorRevisit struct {
	anchor, other int
	next          int
	started       bool
	visitedOther  bool
	cycles        int
}

func NewAnchorRevisit(anchor, other int) *AnchorRevisit {
	return &AnchorRevisit{anchor: anchor, other: other, next: anchor}
}

func (a *AnchorRevisit) Next() int { return a.next }

// Observe classifies pos as whichever endpoint it is nearer to.
func (a *AnchorRevisit) Observe(pos int) bool {
	atAnchor := abs(pos-a.anchor) <= abs(pos-a.other)
	if atAnchor {
		a.next = a.other
	} else {
		a.next = a.anchor
	}

	if !a.started {
		a.started = true
		return false
	}
	if !atAnchor {
		a.visitedOther = true
		return false
	}
	if !a.visitedOther {
		return false
	}
	a.visitedOther = false
	a.cycles++
	return true
}

func (a *AnchorRevisit) Cycles() int { return a.cycles }

// RotationModulo counts revolutions of a continuously turning axis. A
// revolution boundary is crossed whenever the position reduced modulo
// stepsPerRev wraps: it decreases between samples when turning forward and
// increases when turning in reverse. The first sample only primes the state.
type RotationModulo struct {
	stepsPerRev int
	reverse     bool
	prev        int
	primed      bool
	cycles      int
}

func NewRotationModulo(stepsPerRev int, reverse bool) *RotationModulo {
	return &RotationModulo{stepsPerRev: stepsPerRev, reverse: reverse}
}

func (r *RotationModulo) Observe(pos int) bool {
	m := pos % r.stepsPerRev
	if m < 0 {
		m += r.stepsPerRev
	}
	wrapped := false
	if r.primed {
		if r.reverse {
			wrapped = m > r.prev
		} else {
			wrapped = m < r.prev
		}
	}
	r.prev, r.primed = m, true
	if wrapped {
		r.cycles++
	}
	return wrapped
}

func (r *RotationModulo) Cycles() int { return r.cycles }
