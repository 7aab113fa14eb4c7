// Package session owns the import workflow of one browser or terminal session:
// upload, per-row edits, confirm and cancel over a single staged preview.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"importdesk/internal/backend"
	"importdesk/internal/core"
	applog "importdesk/internal/log"
	"importdesk/internal/preview"
)

var (
	ErrNoFile           = errors.New("Please select a CSV file")
	ErrPendingEdits     = errors.New("Please save or cancel all pending edits before confirming the import.")
	ErrNothingToConfirm = errors.New("There is no import to confirm")
)

// Notifier is told about committed imports. Failures are logged, never returned.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, result core.ConfirmResult) error
}

// Options configures a Session.
type Options struct {
	Location   *time.Location
	Categories *CategorySource
	Notifier   Notifier
	// ResetDelay is how long the confirm summary stays up before the view resets.
	ResetDelay time.Duration
	Logger     *applog.Logger
}

// Session serializes every operation on its staged import.
type Session struct {
	id         string
	importer   backend.Importer
	categories *CategorySource
	notifier   Notifier
	resetDelay time.Duration
	loc        *time.Location
	logger     *applog.Logger

	mu       sync.Mutex
	store    *preview.Store
	rows     *preview.Rows
	filename string
	message  string
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	Active   bool
	Filename string
	Message  string
	Summary  core.PreviewSummary
	Rows     []preview.Row
}

// ConfirmOutcome tells the caller what to show after a successful commit.
type ConfirmOutcome struct {
	Result     core.ConfirmResult
	ResetAfter time.Duration
}

func New(id string, importer backend.Importer, opts Options) *Session {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	categories := opts.Categories
	if categories == nil {
		categories = NewCategorySource(nil, time.Minute, nil, logger)
	}

	store := preview.NewStore()
	return &Session{
		id:         id,
		importer:   importer,
		categories: categories,
		notifier:   opts.Notifier,
		resetDelay: opts.ResetDelay,
		loc:        loc,
		logger:     logger.WithComponent(applog.ComponentSession).With(applog.FieldSessionID, id),
		store:      store,
		rows:       preview.NewRows(store, loc),
	}
}

func (s *Session) ID() string { return s.id }

// Location is the zone dates are shown and entered in.
func (s *Session) Location() *time.Location { return s.loc }

// Upload sends r to the API for parsing and stages the result. A nil reader or
// empty filename means no file was chosen. On failure the current preview is kept.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) (core.UploadResult, error) {
	if r == nil || filename == "" {
		return core.UploadResult{}, ErrNoFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.importer.ParseCSV(ctx, filename, r)
	if err != nil {
		s.logger.Operation(ctx, applog.OpUpload, err, applog.NewFields().WithImport(filename, 0, ""))
		return core.UploadResult{}, err
	}

	s.store.Replace(res.Expenses)
	s.rows.Reset()
	s.filename = filename
	if res.Filename != "" {
		s.filename = res.Filename
	}
	s.message = res.Message

	s.logger.Operation(ctx, applog.OpUpload, nil,
		applog.NewFields().WithImport(s.filename, res.Count, res.Total.Decimal().StringFixed(2)))
	return res.UploadResult, nil
}

// Confirm commits the staged records. It refuses while any row is being
// edited. On success the preview is cleared at once; on failure it is kept.
func (s *Session) Confirm(ctx context.Context) (ConfirmOutcome, error) {
	s.mu.Lock()
	if s.rows.AnyEditing() {
		s.mu.Unlock()
		return ConfirmOutcome{}, ErrPendingEdits
	}
	if !s.store.Active() {
		s.mu.Unlock()
		return ConfirmOutcome{}, ErrNothingToConfirm
	}

	records := s.store.All()
	res, err := s.importer.ConfirmImport(ctx, records)
	if err != nil {
		s.mu.Unlock()
		s.logger.Operation(ctx, applog.OpConfirm, err, applog.NewFields().WithImport(s.filename, len(records), ""))
		return ConfirmOutcome{}, err
	}

	s.clearLocked()
	s.mu.Unlock()

	s.logger.Operation(ctx, applog.OpConfirm, nil,
		applog.NewFields().WithImport("", res.Count, res.Total.Decimal().StringFixed(2)))

	if s.notifier != nil {
		if err := s.notifier.NotifyConfirmed(ctx, res); err != nil {
			s.logger.WarnContext(ctx, "import confirmed notification failed", applog.FieldError, err)
		}
	}
	return ConfirmOutcome{Result: res, ResetAfter: s.resetDelay}, nil
}

// Cancel discards the staged preview without contacting the API.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) EditRow(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows.Edit(i)
}

// SaveRow validates in and writes it to row i.
func (s *Session) SaveRow(ctx context.Context, i int, in preview.Input) error {
	categories := s.categories.Resolve(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows.Save(i, in, categories)
}

func (s *Session) CancelRow(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows.Cancel(i)
}

// Row returns a snapshot of row i.
func (s *Session) Row(i int) (preview.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows.Row(i)
}

// Summary is the count and total of the staged records.
func (s *Session) Summary() core.PreviewSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.PreviewSummary{Count: s.store.Len(), Total: s.store.Total()}
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Active:   s.store.Active(),
		Filename: s.filename,
		Message:  s.message,
		Summary:  core.PreviewSummary{Count: s.store.Len(), Total: s.store.Total()},
		Rows:     s.rows.Snapshot(),
	}
}

// Records returns a copy of the staged records.
func (s *Session) Records() []core.PreviewExpense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

func (s *Session) Categories(ctx context.Context) []string {
	return s.categories.Resolve(ctx)
}

func (s *Session) clearLocked() {
	s.store.Clear()
	s.rows.Reset()
	s.filename = ""
	s.message = ""
}
