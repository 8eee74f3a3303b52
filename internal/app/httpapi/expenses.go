package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/expenses"
	"github.com/travelties/service_layer/internal/httputil"
)

const maxWebhookBody = 64 << 10

func (h *handler) expenseRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/expenses", h.createExpense).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/expenses", h.listExpenses).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/expenses/summary", h.expenseSummary).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/expenses/{expenseId}", h.getExpense).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/expenses/{expenseId}", h.updateExpense).Methods(http.MethodPut)
	r.HandleFunc("/trips/{tripId}/expenses/{expenseId}", h.deleteExpense).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/balances", h.balances).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/settlements", h.createSettlement).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/settlements", h.listSettlements).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/settlements/{settlementId}/complete", h.completeSettlement).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/settlements/{settlementId}/intent", h.createPaymentIntent).Methods(http.MethodPost)
}

func (h *handler) createExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in expenses.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	e, err := h.app.Expenses.Create(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Expenses.List(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) expenseSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	sum, err := h.app.Expenses.Summary(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (h *handler) getExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	e, err := h.app.Expenses.Get(r.Context(), userID, v["tripId"], v["expenseId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in expenses.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	e, err := h.app.Expenses.Update(r.Context(), userID, v["tripId"], v["expenseId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Expenses.Delete(r.Context(), userID, v["tripId"], v["expenseId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) balances(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	b, err := h.app.Expenses.Balances(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) createSettlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in expenses.SettlementInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	st, err := h.app.Expenses.CreateSettlement(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, st)
}

func (h *handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Expenses.ListSettlements(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) completeSettlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	st, err := h.app.Expenses.CompleteSettlement(r.Context(), userID, v["tripId"], v["settlementId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	intent, err := h.app.Payments.CreateIntent(r.Context(), userID, v["tripId"], v["settlementId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, intent)
}

// paymentWebhook is called by Stripe without a user token.
func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := httputil.ReadAllStrict(r.Body, maxWebhookBody)
	if err != nil {
		httputil.BadRequest(w, "webhook body too large")
		return
	}
	if err := h.app.Payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
