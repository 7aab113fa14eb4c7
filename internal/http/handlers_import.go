package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"importdesk/internal/backend"
	applog "importdesk/internal/log"
	"importdesk/internal/preview"
	"importdesk/internal/session"
)

// handleUpload parses the chosen CSV through the API and swaps in the preview.
// Failures go to the status area and leave the current preview alone.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)
	logger := applog.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			StatusMessage(http.StatusRequestEntityTooLarge, "error",
				fmt.Sprintf("Error: file is larger than %d bytes", s.cfg.UploadMaxBytes)).Write(w)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			logger.WarnContext(ctx, "Parse upload form error", applog.FieldError, err)
			StatusMessage(http.StatusBadRequest, "error", "Error: invalid upload").Write(w)
			return
		}
	}

	var (
		filename string
		file     io.Reader
	)
	if f, header, err := r.FormFile("csv"); err == nil {
		defer f.Close()
		filename, file = header.Filename, f
	}

	res, err := sess.Upload(ctx, filename, file)
	switch {
	case errors.Is(err, session.ErrNoFile):
		StatusMessage(http.StatusUnprocessableEntity, "error", err.Error()).Write(w)
		return
	case err != nil:
		status, msg := backendFailure(err, backend.FallbackUpload)
		StatusMessage(status, "error", "Error: "+msg).Write(w)
		return
	}

	view := newPreviewView(sess.View(), sess.Categories(ctx))
	view.Status = &statusView{Class: "success", Text: res.Message}
	s.render(ctx, NewHTMXResponse(), "preview", view).Write(w)
}

// handlePreview renders the preview section. With reset=1 it also resets the
// upload control and reloads the listing; the confirm summary calls it that way.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)

	b := NewHTMXResponse()
	if r.URL.Query().Get("reset") == "1" {
		b.TriggerImportReset().TriggerExpensesReload()
	}
	s.render(ctx, b, "preview", newPreviewView(sess.View(), sess.Categories(ctx))).Write(w)
}

// handleConfirm commits the staged records.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)

	out, err := sess.Confirm(ctx)
	switch {
	case errors.Is(err, session.ErrPendingEdits), errors.Is(err, session.ErrNothingToConfirm):
		NewHTMXResponse().
			Status(http.StatusConflict).
			Header("HX-Reswap", "none").
			TriggerErrorNotification(err.Error()).
			Write(w)
		return
	case err != nil:
		status, msg := backendFailure(err, backend.FallbackConfirm)
		StatusMessage(status, "error", "Error saving transactions: "+msg).Write(w)
		return
	}

	s.invalidateListing()

	data := struct {
		Summary      string
		ResetAfterMs int64
	}{
		Summary:      out.Result.Summary(),
		ResetAfterMs: out.ResetAfter.Milliseconds(),
	}
	b := NewHTMXResponse().Retarget("#upload-status", "innerHTML")
	s.render(ctx, b, "confirm-result", data).Write(w)
}

// handleCancel discards the preview without contacting the API.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)
	sess.Cancel()

	applog.FromContext(ctx).WithComponent(applog.ComponentSession).
		Operation(ctx, applog.OpCancel, nil, applog.NewFields())

	b := NewHTMXResponse().TriggerImportReset()
	s.render(ctx, b, "preview", newPreviewView(sess.View(), nil)).Write(w)
}

func (s *Server) handleRowEdit(w http.ResponseWriter, r *http.Request) {
	s.rowAction(w, r, func(sess *session.Session, i int) error {
		return sess.EditRow(i)
	})
}

func (s *Server) handleRowCancel(w http.ResponseWriter, r *http.Request) {
	s.rowAction(w, r, func(sess *session.Session, i int) error {
		return sess.CancelRow(i)
	})
}

// handleRowSave validates the edit form and writes it to the staged record.
// Validation failures re-render the row in edit mode with a 422.
func (s *Server) handleRowSave(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseRowInput(r.PostForm)
	s.rowAction(w, r, func(sess *session.Session, i int) error {
		return sess.SaveRow(r.Context(), i, in)
	})
}

// rowAction runs op on the row named by the path and renders the row afterwards.
func (s *Server) rowAction(w http.ResponseWriter, r *http.Request, op func(*session.Session, int) error) {
	ctx := r.Context()
	sess := s.sessionFor(w, r)

	i, err := PathInt(r, "index")
	if err != nil {
		BadRequestError("Invalid row").Write(w)
		return
	}

	opErr := op(sess, i)
	if errors.Is(opErr, preview.ErrNoRow) {
		NotFoundError("Row not found").
			Retarget("#upload-status", "innerHTML").
			Write(w)
		return
	}

	row, ok := sess.Row(i)
	if !ok {
		NotFoundError("Row not found").Write(w)
		return
	}
	view := rowView{Row: row, Categories: sess.Categories(ctx)}

	b := NewHTMXResponse()
	switch {
	case opErr == nil:
	case isDateError(opErr):
		b.Status(http.StatusUnprocessableEntity)
	case errors.Is(opErr, preview.ErrNotEditing):
		b.Status(http.StatusConflict)
	default:
		view.Error = opErr.Error()
		b.Status(http.StatusUnprocessableEntity).TriggerErrorNotification(opErr.Error())
	}

	if opErr != nil {
		applog.FromContext(ctx).DebugContext(ctx, "Row action rejected",
			applog.FieldRowIndex, i, applog.FieldError, opErr)
	}
	s.render(ctx, b, "row", view).Write(w)
}
