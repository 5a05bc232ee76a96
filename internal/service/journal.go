package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brokernuam/calificaciones/internal/api"
	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

// HistoryLimit is how many entries the history screen shows.
const HistoryLimit = 50

// Journal appends the outcome of every mutating request to the local activity log.
// Write failures are logged and swallowed; the journal never blocks the caller.
type Journal struct {
	Activity *repository.ActivityRepo
	Log      logrus.FieldLogger
}

// NewJournal builds a journal over repo.
func NewJournal(repo *repository.ActivityRepo, log logrus.FieldLogger) *Journal {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Journal{Activity: repo, Log: log}
}

// Record stores one outcome. A nil err is a success.
func (j *Journal) Record(ctx context.Context, action, recordID, instrumento string, err error) {
	if j == nil || j.Activity == nil {
		return
	}
	e := repository.ActivityEntry{
		ID:          uuid.NewString(),
		Action:      action,
		RecordID:    recordID,
		Instrumento: instrumento,
		Outcome:     repository.OutcomeOK,
		RequestedAt: database.Now(),
	}
	if err != nil {
		e.Outcome = repository.OutcomeError
		e.Detail = errorDetail(err)
		e.RequestID = api.RequestID(err)
	}
	// a cancelled request context must not lose the entry
	if werr := j.Activity.Insert(context.WithoutCancel(ctx), e); werr != nil {
		j.Log.WithError(werr).WithField("action", action).Warn("journal write failed")
	}
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(ctx context.Context) ([]repository.ActivityEntry, error) {
	if j == nil || j.Activity == nil {
		return nil, nil
	}
	return j.Activity.ListRecent(ctx, HistoryLimit)
}

func errorDetail(err error) string {
	if lines := api.Details(err); len(lines) > 0 {
		return strings.Join(lines, "; ")
	}
	return err.Error()
}
