// Package policyio reads and writes tic-tac-toe policies as YAML documents.
package policyio

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/mdp"
)

var (
	ErrChecksumMismatch = errors.New("policy checksum mismatch")
	ErrBadEntry         = errors.New("bad policy entry")
)

type Policy = mdp.Policy[board.State, board.Move]

// Entry is one state and the move to play in it, both in their text form.
type Entry struct {
	State string `json:"state" yaml:"state"`
	Move  string `json:"move" yaml:"move"`
}

type Document struct {
	Solver   string             `json:"solver" yaml:"solver"`
	Agent    string             `json:"agent" yaml:"agent"`
	Created  time.Time          `json:"created" yaml:"created"`
	Params   map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Checksum string             `json:"checksum" yaml:"checksum"`
	Entries  []Entry            `json:"entries" yaml:"entries"`
}

// checksum hashes the entries in order.
func checksum(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.State)
		sb.WriteByte('=')
		sb.WriteString(e.Move)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(sb.String()))
}

// NewDocument builds a document for pol, with entries sorted by state.
func NewDocument(solver string, agent board.Marker, pol *Policy, params map[string]float64) *Document {
	m := pol.Map()
	states := lo.Keys(m)
	slices.Sort(states)
	entries := lo.Map(states, func(s board.State, _ int) Entry {
		return Entry{State: s.String(), Move: m[s].String()}
	})
	return &Document{
		Solver:   solver,
		Agent:    agent.String(),
		Created:  time.Now().UTC().Truncate(time.Second),
		Params:   params,
		Checksum: checksum(entries),
		Entries:  entries,
	}
}

// Verify checks the checksum against the entries.
func (d *Document) Verify() error {
	if sum := checksum(d.Entries); sum != d.Checksum {
		return fmt.Errorf("%w: document says %s, entries hash to %s", ErrChecksumMismatch, d.Checksum, sum)
	}
	return nil
}

// Policy verifies the document and rebuilds the policy. Every entry must be
// a legal move in a position where the document's agent is to move.
func (d *Document) Policy() (*Policy, error) {
	if err := d.Verify(); err != nil {
		return nil, err
	}
	agent, err := board.ParseMarker(d.Agent)
	if err != nil {
		return nil, err
	}
	m := make(map[board.State]board.Move, len(d.Entries))
	for i, e := range d.Entries {
		s, err := board.Parse(e.State)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrBadEntry, i, err)
		}
		mv, err := board.ParseMove(e.Move)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrBadEntry, i, err)
		}
		if s.ToMove() != agent {
			return nil, fmt.Errorf("%w: entry %d: %v is not %v to move", ErrBadEntry, i, s, agent)
		}
		if _, err := s.Play(mv); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrBadEntry, i, err)
		}
		if _, dup := m[s]; dup {
			return nil, fmt.Errorf("%w: entry %d: %v listed twice", ErrBadEntry, i, s)
		}
		m[s] = mv
	}
	return mdp.NewPolicy(m), nil
}

func Marshal(d *Document) ([]byte, error) {
	return yaml.Marshal(d)
}

// Unmarshal parses and verifies a document.
func Unmarshal(b []byte) (*Document, error) {
	d := &Document{}
	if err := yaml.Unmarshal(b, d); err != nil {
		return nil, err
	}
	if err := d.Verify(); err != nil {
		return nil, err
	}
	return d, nil
}

func Write(w io.Writer, d *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// Read decodes and verifies a document.
func Read(r io.Reader) (*Document, error) {
	d := &Document{}
	if err := yaml.NewDecoder(r).Decode(d); err != nil {
		return nil, err
	}
	if err := d.Verify(); err != nil {
		return nil, err
	}
	return d, nil
}
