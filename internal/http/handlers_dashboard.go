package http

import (
	"net/http"

	"fixedspend/internal/log"
	"fixedspend/internal/services"
	"fixedspend/internal/session"
)

// handleDashboard renders the main page. A failed fetch renders the empty state.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ctx, cancel := remoteContext(r.Context())
	defer cancel()

	list, err := s.expenses.List(ctx, sess)
	if err != nil {
		log.FromContext(ctx, s.logger).ErrorContext(ctx, "Failed to list expenses",
			log.FieldOperation, log.OpList,
			log.FieldUserID, sess.User.ID,
			log.FieldError, err)
		list = services.ExpenseList{}
	}

	data := dashboardView{
		Chrome: chrome{SignedIn: true, UserEmail: sess.User.Email},
		Board:  newBoardView(list, s.now()),
		Sheet:  newSheetView(),
	}
	if r.URL.Query().Get("alert") == "create" {
		data.Alert = msgCreateFailed
	}
	s.render(w, r, http.StatusOK, "dashboard_page", data)
}

// handleExpenseBoard returns the summary and list partial. On failure the
// client keeps what it already shows.
func (s *Server) handleExpenseBoard(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	ctx, cancel := remoteContext(r.Context())
	defer cancel()

	list, err := s.expenses.List(ctx, sess)
	if err != nil {
		log.FromContext(ctx, s.logger).ErrorContext(ctx, "Failed to refresh expenses",
			log.FieldOperation, log.OpList,
			log.FieldUserID, sess.User.ID,
			log.FieldError, err)
		NewHTMXResponse().NoSwap().Write(w)
		return
	}

	log.FromContext(ctx, s.logger).DebugContext(ctx, "Expenses listed",
		log.FieldUserID, sess.User.ID,
		log.FieldCount, list.Count,
		log.FieldTotal, list.Total)
	s.render(w, r, http.StatusOK, "expense_board", newBoardView(list, s.now()))
}
