package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
	"fixedspend/internal/session"
)

// handleCreateExpense inserts one row. Incomplete forms are ignored without
// feedback; store failures raise a blocking alert.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ctx, cancel := remoteContext(r.Context())
	defer cancel()

	in, err := ParseExpenseInput(r)
	if err != nil {
		log.FromContext(ctx, s.logger).WarnContext(ctx, "Parse form error", log.FieldOperation, log.OpCreate, log.FieldError, err)
		s.createFailed(w, r)
		return
	}

	row, err := s.expenses.Create(ctx, sess, in)
	switch {
	case errors.Is(err, core.ErrIncompleteInput):
		if IsHTMX(r) {
			NewHTMXResponse().Status(http.StatusNoContent).NoSwap().Write(w)
			return
		}
		http.Redirect(w, r, session.HomePath, http.StatusSeeOther)
		return
	case err != nil:
		log.FromContext(ctx, s.logger).ErrorContext(ctx, "Failed to save expense",
			log.NewFields().
				WithOperation(log.OpCreate).
				WithUser(sess.User.ID).
				WithExpense("", in.ServiceName, in.Amount, in.PaymentDay, in.Category).
				WithError(err).
				ToSlice()...)
		atomic.AddInt64(&s.appMetrics.mutationErrors, 1)
		s.createFailed(w, r)
		return
	}

	atomic.AddInt64(&s.appMetrics.expensesCreated, 1)
	log.FromContext(ctx, s.logger).InfoContext(ctx, "Expense created via form",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, row.ID)

	if !IsHTMX(r) {
		http.Redirect(w, r, session.HomePath, http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		NoSwap().
		TriggerFormReset().
		TriggerSheetClose().
		TriggerExpensesRefresh().
		Write(w)
}

// createFailed keeps the form as typed and raises the alert.
func (s *Server) createFailed(w http.ResponseWriter, r *http.Request) {
	if !IsHTMX(r) {
		http.Redirect(w, r, session.HomePath+"?alert=create", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().NoSwap().TriggerAlert(msgCreateFailed).Write(w)
}

// handleDeleteExpense removes one row by ID. Failures are only logged.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ctx, cancel := remoteContext(r.Context())
	defer cancel()

	id := expenseID(r)
	err := s.expenses.Delete(ctx, sess, id)
	if err != nil {
		logger := log.FromContext(ctx, s.logger)
		level := logger.ErrorContext
		if errors.Is(err, remote.ErrNotFound) {
			level = logger.WarnContext
		}
		level(ctx, "Failed to delete expense",
			log.FieldOperation, log.OpDelete,
			log.FieldUserID, sess.User.ID,
			log.FieldExpenseID, id,
			log.FieldError, err)
		atomic.AddInt64(&s.appMetrics.mutationErrors, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.expensesDeleted, 1)
	}

	if !IsHTMX(r) {
		http.Redirect(w, r, session.HomePath, http.StatusSeeOther)
		return
	}
	resp := NewHTMXResponse().NoSwap()
	if err == nil {
		resp.TriggerExpensesRefresh()
	}
	resp.Write(w)
}
