package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/users"
	"github.com/travelties/service_layer/internal/auth"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) userRoutes(r *mux.Router) {
	r.HandleFunc("/users", h.registerUser).Methods(http.MethodPost)
	r.HandleFunc("/users", h.searchUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/users/me", h.updateMe).Methods(http.MethodPatch)
	r.HandleFunc("/users/me", h.deleteMe).Methods(http.MethodDelete)
	r.HandleFunc("/users/me/activity", h.activity).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}", h.publicUser).Methods(http.MethodGet)

	r.HandleFunc("/friends", h.friends).Methods(http.MethodGet)
	r.HandleFunc("/friends/{userId}", h.removeFriend).Methods(http.MethodDelete)
	r.HandleFunc("/friends/requests", h.sendFriendRequest).Methods(http.MethodPost)
	r.HandleFunc("/friends/requests", h.friendRequests).Methods(http.MethodGet)
	r.HandleFunc("/friends/requests/{requestId}/{action:accept|decline}", h.respondFriendRequest).Methods(http.MethodPost)
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return
	}
	var in users.RegisterInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	u, created, err := h.app.Users.Register(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, u)
}

func (h *handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Users.Search(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in users.UpdateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	u, err := h.app.Users.Update(r.Context(), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.Delete(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) publicUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	u, err := h.app.Users.Public(r.Context(), vars(r)["userId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) friends(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Users.Friends(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) removeFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.RemoveFriend(r.Context(), userID, vars(r)["userId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		To string `json:"to"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	req, err := h.app.Users.SendRequest(r.Context(), userID, payload.To)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *handler) friendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Users.ListRequests(r.Context(), userID, r.URL.Query().Get("direction"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) respondFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	req, err := h.app.Users.Respond(r.Context(), userID, v["requestId"], v["action"] == "accept")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}
