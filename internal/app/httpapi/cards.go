package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/cards"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) cardRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/cards", h.createCard).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/cards", h.listCards).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/cards/{cardId}", h.getCard).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/cards/{cardId}", h.updateCard).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/cards/{cardId}", h.deleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/cards/{cardId}/move", h.moveCard).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/tabs", h.tabs).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/tabs/{tab}", h.reorderTab).Methods(http.MethodPut)
}

func (h *handler) createCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in cards.CreateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	c, err := h.app.Cards.Create(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *handler) listCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Cards.List(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	c, err := h.app.Cards.Get(r.Context(), userID, v["tripId"], v["cardId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) updateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in cards.UpdateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	c, err := h.app.Cards.Update(r.Context(), userID, v["tripId"], v["cardId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Cards.Delete(r.Context(), userID, v["tripId"], v["cardId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) moveCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Tab      string `json:"tab"`
		Position *int   `json:"position"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	order, err := h.app.Cards.Move(r.Context(), userID, v["tripId"], v["cardId"], payload.Tab, payload.Position)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orderInTab": order})
}

func (h *handler) tabs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Cards.Tabs(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) reorderTab(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		CardIDs []string `json:"cardIds"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	order, err := h.app.Cards.Reorder(r.Context(), userID, v["tripId"], v["tab"], payload.CardIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orderInTab": order})
}
