package sas7bdat

import (
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/defineEditor/sas7bdat/decode"
	"github.com/defineEditor/sas7bdat/internal/sasfile"
)

// Extractor runs extraction passes.  It holds configuration only, so one
// Extractor may serve any number of calls, including concurrent calls on
// different files.
type Extractor struct {
	opener  decode.Opener
	logger  log.Logger
	metrics *Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOpener sets the decoder used to read files.  The default is the
// built-in SAS7BDAT decoder.
func WithOpener(o decode.Opener) Option {
	return func(x *Extractor) { x.opener = o }
}

// WithLogger sets the logger.  The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(x *Extractor) { x.logger = l }
}

// WithMetrics records pass metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(x *Extractor) { x.metrics = m }
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{logger: log.NewNopLogger()}
	for _, o := range opts {
		o(x)
	}
	if x.opener == nil {
		x.opener = sasfile.NewOpener(sasfile.WithLogger(x.logger))
	}
	return x
}

type passMode int

const (
	modeMetadata passMode = iota
	modeFull
)

func (m passMode) String() string {
	if m == modeMetadata {
		return "metadata"
	}
	return "full"
}

// session is the state of one call.  Handlers close over it; nothing in
// it outlives the call except the result handed to the caller.
type session struct {
	x    *Extractor
	path string
	mode passMode
	meta *MetadataBuilder
	rows *RowAccumulator
}

func (x *Extractor) newSession(path string, mode passMode) *session {
	s := &session{x: x, path: path, mode: mode, meta: NewMetadataBuilder()}
	if mode == modeFull {
		s.rows = NewRowAccumulator(0)
	}
	return s
}

func (s *session) handlers() decode.Handlers {
	h := decode.Handlers{
		Metadata: s.onMetadata,
		Variable: s.meta.OnVariable,
	}
	if s.mode == modeFull {
		h.Value = s.rows.OnValue
	}
	return h
}

func (s *session) onMetadata(md *decode.Metadata) error {
	if err := s.meta.OnMetadata(md); err != nil {
		return err
	}
	if s.rows != nil {
		s.rows.Reset(md.VarCount)
	}
	return nil
}

// run opens one handle, runs the pass and closes the handle on every path.
func (s *session) run(paging Paging) (err error) {
	start := time.Now()
	logger := log.With(s.x.logger, "path", s.path, "mode", s.mode)
	level.Debug(logger).Log("msg", "starting decode pass", "offset", paging.Offset, "limit", paging.Limit)

	op := "parse SAS7BDAT file"
	if s.mode == modeMetadata {
		op = "parse SAS7BDAT metadata"
	}

	h, err := s.x.opener.Open(s.path)
	if err != nil {
		s.x.metrics.observe(s.mode, "error", 0, time.Since(start))
		level.Debug(logger).Log("msg", "open failed", "err", err)
		return newDecodeError(op, s.path, decode.Wrap(decode.StatusOpen, err))
	}

	paging.Apply(h)
	h.Register(s.handlers())
	runErr := h.Run()
	if cerr := h.Close(); cerr != nil {
		level.Warn(logger).Log("msg", "closing decode handle", "err", cerr)
	}

	if runErr != nil {
		s.x.metrics.observe(s.mode, "error", 0, time.Since(start))
		level.Debug(logger).Log("msg", "decode pass failed", "err", runErr)
		return newDecodeError(op, s.path, runErr)
	}
	return nil
}

// GetMetadata reads the descriptor of the file at path.  Value events are
// never requested.
func (x *Extractor) GetMetadata(path string) (*DatasetDescriptor, error) {
	start := time.Now()
	s := x.newSession(path, modeMetadata)
	if err := s.run(Unpaged); err != nil {
		return nil, err
	}
	desc, err := s.meta.Descriptor()
	if err != nil {
		x.metrics.observe(modeMetadata, "error", 0, time.Since(start))
		return nil, newDecodeError("parse SAS7BDAT metadata", path, err)
	}

	desc.FilePath = path
	desc.FileFormat = FileFormat
	desc.Name = fileStem(path)

	x.metrics.observe(modeMetadata, "ok", 0, time.Since(start))
	level.Debug(x.logger).Log("msg", "metadata extracted", "path", path, "columns", len(desc.Columns), "records", desc.Records, "took", time.Since(start))
	return desc, nil
}

// ReadData reads the rows of the file at path, skipping offset records
// and stopping after limit records (NoLimit for all).
func (x *Extractor) ReadData(path string, offset, limit int) (RowMatrix, error) {
	paging, err := NewPaging(offset, limit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s := x.newSession(path, modeFull)
	if err := s.run(paging); err != nil {
		return nil, err
	}
	if _, err := s.meta.Descriptor(); err != nil {
		x.metrics.observe(modeFull, "error", 0, time.Since(start))
		return nil, newDecodeError("parse SAS7BDAT file", path, err)
	}
	rows, err := s.rows.Rows()
	if err != nil {
		x.metrics.observe(modeFull, "error", 0, time.Since(start))
		return nil, newDecodeError("parse SAS7BDAT file", path, err)
	}

	x.metrics.observe(modeFull, "ok", len(rows), time.Since(start))
	level.Debug(x.logger).Log("msg", "data extracted", "path", path, "rows", len(rows), "took", time.Since(start))
	return rows, nil
}

// ReadAll reads every row of the file at path.
func (x *Extractor) ReadAll(path string) (RowMatrix, error) {
	return x.ReadData(path, 0, NoLimit)
}

// fileStem returns the file name of path without its directory or
// extension.  Both '/' and '\' separate directories.
func fileStem(path string) string {
	name := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return name
}
