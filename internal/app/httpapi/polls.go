package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/polls"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) pollRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/polls", h.createPoll).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/polls", h.listPolls).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/polls/{pollId}", h.getPoll).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/polls/{pollId}", h.deletePoll).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/polls/{pollId}/votes", h.vote).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/polls/{pollId}/votes", h.retractVote).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/polls/{pollId}/close", h.closePoll).Methods(http.MethodPost)
}

func (h *handler) createPoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in polls.CreateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	p, err := h.app.Polls.Create(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) listPolls(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Polls.List(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getPoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Polls.Get(r.Context(), userID, v["tripId"], v["pollId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deletePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Polls.Delete(r.Context(), userID, v["tripId"], v["pollId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		OptionIDs []string `json:"optionIds"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	p, err := h.app.Polls.Vote(r.Context(), userID, v["tripId"], v["pollId"], payload.OptionIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) retractVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Polls.Retract(r.Context(), userID, v["tripId"], v["pollId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) closePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Polls.Close(r.Context(), userID, v["tripId"], v["pollId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
