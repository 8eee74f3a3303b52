package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/trips"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) tripRoutes(r *mux.Router) {
	r.HandleFunc("/trips", h.createTrip).Methods(http.MethodPost)
	r.HandleFunc("/trips", h.listTrips).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}", h.getTrip).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}", h.updateTrip).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}", h.deleteTrip).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/members", h.addMembers).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/members/{userId}", h.removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/events", h.tripEvents).Methods(http.MethodGet)
}

func (h *handler) createTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in trips.CreateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	t, err := h.app.Trips.Create(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *handler) listTrips(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Trips.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	t, err := h.app.Trips.Get(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *handler) updateTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in trips.UpdateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	t, err := h.app.Trips.Update(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *handler) deleteTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.app.Trips.Delete(r.Context(), userID, vars(r)["tripId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		UserIDs []string `json:"userIds"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	t, err := h.app.Trips.AddMembers(r.Context(), userID, vars(r)["tripId"], payload.UserIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

// removeMember answers 204 when the last member left and the trip is gone.
func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	t, deleted, err := h.app.Trips.RemoveMember(r.Context(), userID, v["tripId"], v["userId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if deleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

// tripEvents upgrades to a websocket streaming the trip's events.
func (h *handler) tripEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	tripID := vars(r)["tripId"]
	if _, err := h.app.Access.Require(r.Context(), tripID, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.app.Hub.Serve(w, r, tripID, userID); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Debug("websocket closed")
	}
}
