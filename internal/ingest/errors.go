package ingest

import (
	"errors"
	"fmt"
)

// Errors that stop a sync or webhook before any event is processed.
var (
	ErrUnknownConnector   = errors.New("unknown connector")
	ErrSyncInProgress     = errors.New("a sync is already running for this connector")
	ErrPollingUnsupported = errors.New("provider does not support polling")
	ErrProviderMismatch   = errors.New("provider does not match the connector")
	ErrSyncTooSoon        = errors.New("connector was synced too recently")
	ErrInvalidConnector   = errors.New("invalid connector")
)

// MaxReportedErrors bounds SyncResult.Errors; the overflow is summarised in
// one trailing entry.
const MaxReportedErrors = 20

type errorList struct {
	max     int
	items   []string
	dropped int
}

func newErrorList(max int) *errorList {
	return &errorList{max: max, items: []string{}}
}

func (l *errorList) add(format string, args ...any) {
	if len(l.items) >= l.max {
		l.dropped++
		return
	}
	l.items = append(l.items, fmt.Sprintf(format, args...))
}

func (l *errorList) count() int {
	return len(l.items) + l.dropped
}

func (l *errorList) list() []string {
	if l.dropped == 0 {
		return l.items
	}
	return append(l.items, fmt.Sprintf("... and %d more", l.dropped))
}
