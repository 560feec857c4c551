// Package decodetest provides a scripted decode.Opener for tests.
package decodetest

import (
	"sync"

	"github.com/defineEditor/sas7bdat/decode"
)

// Event is a raw value event, replayed verbatim by a Fixture with a
// Script.
type Event struct {
	Row   int
	Col   int
	Value decode.Value
}

// Fixture is the content of one fake file.
type Fixture struct {
	Metadata  decode.Metadata
	Variables []decode.Variable

	// Records are emitted in row-major order with paging applied.
	Records [][]decode.Value

	// Script, when non-nil, replaces Records: its events are emitted as
	// they are, without paging.
	Script []Event

	// RunErr, when set, is returned by Run after FailAfter value events.
	RunErr    *decode.Error
	FailAfter int
}

// Opener serves fixtures by path and counts handles.
type Opener struct {
	Files map[string]*Fixture

	// OpenErr, when set, is returned by every Open.
	OpenErr error

	mu      sync.Mutex
	opened  int
	closed  int
	configs [][2]int
}

// New returns an Opener serving a single fixture at path.
func New(path string, f *Fixture) *Opener {
	return &Opener{Files: map[string]*Fixture{path: f}}
}

// Open implements decode.Opener.
func (o *Opener) Open(path string) (decode.Handle, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	f, ok := o.Files[path]
	if !ok {
		return nil, decode.Errorf(decode.StatusOpen, "unable to open file %s", path)
	}
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
	return &handle{o: o, f: f, limit: -1}, nil
}

// Opened returns the number of handles opened so far.
func (o *Opener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// Closed returns the number of handles closed so far.
func (o *Opener) Closed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Outstanding returns the number of handles not yet closed.
func (o *Opener) Outstanding() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened - o.closed
}

// Configs returns the (offset, limit) pairs passed to Configure.
func (o *Opener) Configs() [][2]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][2]int(nil), o.configs...)
}

type handle struct {
	o      *Opener
	f      *Fixture
	h      decode.Handlers
	offset int
	limit  int
	closed bool
}

func (h *handle) Configure(offset, limit int) {
	h.offset, h.limit = offset, limit
	h.o.mu.Lock()
	h.o.configs = append(h.o.configs, [2]int{offset, limit})
	h.o.mu.Unlock()
}

func (h *handle) Register(hs decode.Handlers) {
	h.h = hs
}

func (h *handle) Close() error {
	if !h.closed {
		h.closed = true
		h.o.mu.Lock()
		h.o.closed++
		h.o.mu.Unlock()
	}
	return nil
}

func (h *handle) Run() error {
	md := h.f.Metadata
	if md.VarCount == 0 {
		md.VarCount = len(h.f.Variables)
	}
	if h.h.Metadata != nil {
		if err := h.h.Metadata(&md); err != nil {
			return decode.Wrap(decode.StatusUserAbort, err)
		}
	}
	vars := make([]decode.Variable, len(h.f.Variables))
	copy(vars, h.f.Variables)
	for i := range vars {
		if h.h.Variable != nil {
			if err := h.h.Variable(vars[i].Index, &vars[i]); err != nil {
				return decode.Wrap(decode.StatusUserAbort, err)
			}
		}
	}
	if h.h.Value == nil {
		return nil
	}

	emitted := 0
	emit := func(row, col int, val decode.Value) error {
		if h.f.RunErr != nil && emitted == h.f.FailAfter {
			return h.f.RunErr
		}
		emitted++
		v := &decode.Variable{Index: col, Type: val.Type}
		if col >= 0 && col < len(vars) {
			v = &vars[col]
		}
		if err := h.h.Value(row, v, val); err != nil {
			return decode.Wrap(decode.StatusUserAbort, err)
		}
		return nil
	}

	if h.f.Script != nil {
		for _, ev := range h.f.Script {
			if err := emit(ev.Row, ev.Col, ev.Value); err != nil {
				return err
			}
		}
	} else {
		obs := 0
		for i, rec := range h.f.Records {
			if i < h.offset {
				continue
			}
			if h.limit != -1 && obs >= h.limit {
				break
			}
			for j, val := range rec {
				if err := emit(obs, j, val); err != nil {
					return err
				}
			}
			obs++
		}
	}
	if h.f.RunErr != nil && emitted == h.f.FailAfter {
		return h.f.RunErr
	}
	return nil
}
