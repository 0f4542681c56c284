package artifact

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Retention decides what happens to an artifact when a run ends.
type Retention int

const (
	// Transient artifacts are removed on every exit path.
	Transient Retention = iota
	// Retained artifacts outlive the run.
	Retained
	// Superseded artifacts have been replaced by a newer one and are removed on every exit path.
	Superseded
)

func (r Retention) String() string {
	switch r {
	case Transient:
		return "transient"
	case Retained:
		return "retained"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Artifact is one file owned by a run.
type Artifact struct {
	Path      string
	Stage     string
	Retention Retention
}

// Ledger records the files a run created and applies their retention at the end.
type Ledger struct {
	mu    sync.Mutex
	items []*Artifact
	log   *logrus.Entry
}

func NewLedger(log *logrus.Entry) *Ledger {
	return &Ledger{log: log}
}

// Track registers path as created by stage. Tracking a known path updates it.
func (l *Ledger) Track(path, stage string, r Retention) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.find(path); a != nil {
		a.Stage = stage
		a.Retention = r
		return
	}
	l.items = append(l.items, &Artifact{Path: path, Stage: stage, Retention: r})
}

// Supersede marks path as replaced by a newer artifact.
func (l *Ledger) Supersede(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.find(path); a != nil {
		a.Retention = Superseded
	}
}

// Release removes path now and forgets it.
func (l *Ledger) Release(path string) Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.items {
		if a.Path == path {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	return Remove(l.log, path)
}

// Finalize removes every transient and superseded artifact and returns the ones left on disk.
func (l *Ledger) Finalize() (Report, []Artifact) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rep Report
	var kept []Artifact
	remaining := l.items[:0]
	for _, a := range l.items {
		if a.Retention == Retained {
			kept = append(kept, *a)
			remaining = append(remaining, a)
			continue
		}
		rep.merge(Remove(l.log, a.Path))
	}
	l.items = remaining
	return rep, kept
}

func (l *Ledger) find(path string) *Artifact {
	for _, a := range l.items {
		if a.Path == path {
			return a
		}
	}
	return nil
}
