package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"jobfinder-engine/internal/domain"
)

type AppendResult int

const (
	Added AppendResult = iota + 1
	Duplicate
)

func (r AppendResult) String() string {
	switch r {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Mirror receives every job the corpus accepts. It is called after the
// corpus lock is released.
type Mirror interface {
	Mirror(ctx context.Context, job domain.Job) error
}

type corpusFile struct {
	Jobs []domain.Job `json:"jobs"`
}

// Corpus is the persisted, deduplicated job collection: one JSON file,
// rewritten whole through a temp file and rename on every accepted append.
// Writers are serialized in-process by a mutex and across processes by a
// lock file next to the corpus.
type Corpus struct {
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration
	mirror      Mirror
	log         *slog.Logger

	mu sync.Mutex
}

type CorpusOption func(*Corpus)

func WithMirror(m Mirror) CorpusOption {
	return func(c *Corpus) { c.mirror = m }
}

func WithLockTimeout(d time.Duration) CorpusOption {
	return func(c *Corpus) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

func NewCorpus(path string, logger *slog.Logger, opts ...CorpusOption) *Corpus {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Corpus{
		path:        path,
		lock:        flock.New(path + ".lock"),
		lockTimeout: 10 * time.Second,
		log:         logger.With("component", "corpus"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Corpus) Path() string { return c.path }

// Load returns the corpus in insertion order. A missing file is an empty
// corpus. An unparsable file also yields an empty corpus, together with an
// error wrapping domain.ErrStorageCorruption.
func (c *Corpus) Load(ctx context.Context) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.read()
}

// TryAppend persists job unless a job with the same key already exists.
// A duplicate leaves the file untouched.
func (c *Corpus) TryAppend(ctx context.Context, job domain.Job) (AppendResult, error) {
	if err := job.Validate(); err != nil {
		return 0, err
	}

	res, err := c.appendLocked(ctx, job)
	if err != nil || res != Added {
		return res, err
	}

	if c.mirror != nil {
		if merr := c.mirror.Mirror(ctx, job); merr != nil {
			c.log.Warn("mirror failed", "url", job.ApplyLink, "source", job.Source, "err", merr)
		}
	}
	return Added, nil
}

func (c *Corpus) appendLocked(ctx context.Context, job domain.Job) (AppendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	jobs, err := c.read()
	corrupt := errors.Is(err, domain.ErrStorageCorruption)
	if err != nil && !corrupt {
		return 0, err
	}
	if corrupt {
		c.log.Warn("corpus unreadable, treating as empty", "path", c.path, "err", err)
	}

	key := job.Key()
	for _, existing := range jobs {
		if existing.Key() == key {
			return Duplicate, nil
		}
	}

	jobs = append(jobs, job)
	if err := c.write(jobs, corrupt); err != nil {
		return 0, err
	}
	return Added, nil
}

func (c *Corpus) acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	lctx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()

	ok, err := c.lock.TryLockContext(lctx, 25*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock corpus: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock corpus: %s is busy", c.lock.Path())
	}
	return func() { _ = c.lock.Unlock() }, nil
}

func (c *Corpus) read() ([]domain.Job, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	corrupt := func(reason any) ([]domain.Job, error) {
		return []domain.Job{}, fmt.Errorf("%w: %s: %v", domain.ErrStorageCorruption, c.path, reason)
	}

	// The file must hold exactly one object with a "jobs" array.
	var top map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&top); err != nil {
		return corrupt(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return corrupt("trailing data after corpus object")
	}
	raw, ok := top["jobs"]
	if !ok {
		return corrupt(`missing "jobs" key`)
	}
	if raw = bytes.TrimSpace(raw); len(raw) == 0 || raw[0] != '[' {
		return corrupt(`"jobs" is not an array`)
	}
	var jobs []domain.Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return corrupt(err)
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return jobs, nil
}

// write replaces the corpus file atomically. When the current file could
// not be parsed it is kept aside as <path>.corrupt-<unix> first.
func (c *Corpus) write(jobs []domain.Job, preserveCurrent bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(corpusFile{Jobs: jobs}); err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp corpus: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp corpus: %w", err)
	}

	if preserveCurrent {
		aside := fmt.Sprintf("%s.corrupt-%d", c.path, time.Now().Unix())
		if err := os.Rename(c.path, aside); err != nil && !errors.Is(err, os.ErrNotExist) {
			cleanup()
			return fmt.Errorf("preserve unreadable corpus: %w", err)
		}
		c.log.Warn("unreadable corpus preserved", "path", aside)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		cleanup()
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}
