package artifact

import (
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Report is the outcome of a best-effort removal.
type Report struct {
	Removed []string
	Missing []string
	Errors  []Failure
}

// Failure pairs a path with the error that kept it on disk.
type Failure struct {
	Path  string
	Error error
}

// OK reports whether every requested path is gone.
func (r Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) merge(other Report) {
	r.Removed = append(r.Removed, other.Removed...)
	r.Missing = append(r.Missing, other.Missing...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Remove deletes each path. Individual failures are logged and collected, never returned.
func Remove(log *logrus.Entry, paths ...string) Report {
	var rep Report
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			rep.Removed = append(rep.Removed, p)
			if log != nil {
				log.WithField("path", p).Debug("removed artifact")
			}
		case errors.Is(err, os.ErrNotExist):
			rep.Missing = append(rep.Missing, p)
		default:
			rep.Errors = append(rep.Errors, Failure{Path: p, Error: err})
			if log != nil {
				log.WithField("path", p).WithError(err).Warn("failed to remove artifact")
			}
		}
	}
	return rep
}
