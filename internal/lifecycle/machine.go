// Package lifecycle implements the status state machine shared by all
// document types: a fixed directed graph whose edges carry a guard over the
// document and the wall clock, and a stamp that records when the edge was
// taken.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// Status is the constraint satisfied by every document status enumeration.
type Status interface {
	~string
}

// Guard reports why an edge cannot be taken. A nil result means it can.
type Guard[D any] func(doc D, now time.Time) error

// Edge is one legal transition.
type Edge[S Status, D any] struct {
	From   S
	To     S
	Action string
	Guard  Guard[D]
	Stamp  func(doc *D, at time.Time)
}

// Option is an outgoing transition currently available for a document.
type Option[S Status] struct {
	To     S      `json:"to"`
	Action string `json:"action"`
}

// Definition describes a document type's graph.
type Definition[S Status, D any] struct {
	Name      string
	Initial   S
	States    []S
	Terminal  []S
	Edges     []Edge[S, D]
	StatusOf  func(D) S
	SetStatus func(*D, S)
}

// Machine evaluates a validated Definition.
type Machine[S Status, D any] struct {
	def      Definition[S, D]
	known    map[S]struct{}
	terminal map[S]struct{}
	out      map[S][]Edge[S, D]
}

// New validates def and builds a Machine.
func New[S Status, D any](def Definition[S, D]) (*Machine[S, D], error) {
	if def.Name == "" {
		return nil, errors.New("lifecycle: name required")
	}
	if def.StatusOf == nil || def.SetStatus == nil {
		return nil, fmt.Errorf("lifecycle: %s: status accessors required", def.Name)
	}
	m := &Machine[S, D]{
		def:      def,
		known:    make(map[S]struct{}, len(def.States)),
		terminal: make(map[S]struct{}, len(def.Terminal)),
		out:      make(map[S][]Edge[S, D], len(def.States)),
	}
	for _, s := range def.States {
		if _, dup := m.known[s]; dup {
			return nil, fmt.Errorf("lifecycle: %s: duplicate state %s", def.Name, s)
		}
		m.known[s] = struct{}{}
	}
	if _, ok := m.known[def.Initial]; !ok {
		return nil, fmt.Errorf("lifecycle: %s: initial state %s not declared", def.Name, def.Initial)
	}
	for _, s := range def.Terminal {
		if _, ok := m.known[s]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: terminal state %s not declared", def.Name, s)
		}
		m.terminal[s] = struct{}{}
	}
	for _, e := range def.Edges {
		if _, ok := m.known[e.From]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: edge from undeclared state %s", def.Name, e.From)
		}
		if _, ok := m.known[e.To]; !ok {
			return nil, fmt.Errorf("lifecycle: %s: edge to undeclared state %s", def.Name, e.To)
		}
		if _, ok := m.terminal[e.From]; ok {
			return nil, fmt.Errorf("lifecycle: %s: edge out of terminal state %s", def.Name, e.From)
		}
		if e.To == def.Initial {
			return nil, fmt.Errorf("lifecycle: %s: edge back into initial state from %s", def.Name, e.From)
		}
		if e.Stamp == nil {
			return nil, fmt.Errorf("lifecycle: %s: edge %s -> %s has no stamp", def.Name, e.From, e.To)
		}
		for _, existing := range m.out[e.From] {
			if existing.To == e.To {
				return nil, fmt.Errorf("lifecycle: %s: duplicate edge %s -> %s", def.Name, e.From, e.To)
			}
		}
		m.out[e.From] = append(m.out[e.From], e)
	}
	return m, nil
}

// MustNew is New that panics, for package-level machine declarations.
func MustNew[S Status, D any](def Definition[S, D]) *Machine[S, D] {
	m, err := New(def)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the document type name.
func (m *Machine[S, D]) Name() string { return m.def.Name }

// Initial returns the status new documents start in.
func (m *Machine[S, D]) Initial() S { return m.def.Initial }

// Known reports whether s is a declared state.
func (m *Machine[S, D]) Known(s S) bool {
	_, ok := m.known[s]
	return ok
}

// IsTerminal reports whether no edge leaves s.
func (m *Machine[S, D]) IsTerminal(s S) bool {
	_, ok := m.terminal[s]
	return ok
}

// Available lists edges out of the current status whose guard holds.
func (m *Machine[S, D]) Available(doc D, now time.Time) []Option[S] {
	edges := m.out[m.def.StatusOf(doc)]
	opts := make([]Option[S], 0, len(edges))
	for _, e := range edges {
		if e.Guard != nil && e.Guard(doc, now) != nil {
			continue
		}
		opts = append(opts, Option[S]{To: e.To, Action: e.Action})
	}
	return opts
}

// Check validates a transition without applying it.
func (m *Machine[S, D]) Check(doc D, to S, now time.Time) error {
	_, err := m.edge(doc, to, now)
	return err
}

// Transition applies status and stamp to doc when the edge exists and its guard holds.
// doc is left untouched on error.
func (m *Machine[S, D]) Transition(doc *D, to S, now time.Time) error {
	e, err := m.edge(*doc, to, now)
	if err != nil {
		return err
	}
	m.def.SetStatus(doc, to)
	e.Stamp(doc, now)
	return nil
}

func (m *Machine[S, D]) edge(doc D, to S, now time.Time) (Edge[S, D], error) {
	from := m.def.StatusOf(doc)
	refuse := func(cond string) error {
		return &TransitionError{Document: m.def.Name, From: string(from), To: string(to), Condition: cond}
	}
	if !m.Known(to) {
		return Edge[S, D]{}, refuse(fmt.Sprintf("unknown target status %q", string(to)))
	}
	if m.IsTerminal(from) {
		return Edge[S, D]{}, refuse(fmt.Sprintf("%s is terminal", from))
	}
	for _, e := range m.out[from] {
		if e.To != to {
			continue
		}
		if e.Guard != nil {
			if err := e.Guard(doc, now); err != nil {
				return Edge[S, D]{}, refuse(err.Error())
			}
		}
		return e, nil
	}
	return Edge[S, D]{}, refuse(fmt.Sprintf("no transition from %s to %s", from, to))
}

// CanDelete allows deletion only in the initial status.
func (m *Machine[S, D]) CanDelete(doc D) error {
	if s := m.def.StatusOf(doc); s != m.def.Initial {
		return &DeletionError{Document: m.def.Name, Status: string(s)}
	}
	return nil
}

// CanEdit allows line-item changes only in the initial status.
func (m *Machine[S, D]) CanEdit(doc D) error {
	if s := m.def.StatusOf(doc); s != m.def.Initial {
		return &LockedError{Document: m.def.Name, Status: string(s)}
	}
	return nil
}
