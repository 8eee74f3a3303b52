package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/posts"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) postRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/posts", h.createPost).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/posts", h.listPosts).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/posts/{postId}", h.getPost).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/posts/{postId}", h.editPost).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/posts/{postId}", h.deletePost).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/posts/{postId}/like", h.likePost).Methods(http.MethodPut, http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/posts/{postId}/comments", h.addComment).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/posts/{postId}/comments/{commentId}", h.deleteComment).Methods(http.MethodDelete)
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in posts.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	p, err := h.app.Posts.Create(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// listPosts pages with ?before=<RFC3339>&beforeId=<post id>&limit=n.
func (h *handler) listPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var before storage.PostCursor
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httputil.BadRequest(w, "before must be an RFC3339 timestamp")
			return
		}
		before = storage.PostCursor{CreatedAt: t, ID: r.URL.Query().Get("beforeId")}
	}
	page, err := h.app.Posts.List(r.Context(), userID, vars(r)["tripId"], before, queryInt(r, "limit", 0))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Posts.Get(r.Context(), userID, v["tripId"], v["postId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) editPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in posts.Input
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	p, err := h.app.Posts.Edit(r.Context(), userID, v["tripId"], v["postId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Posts.Delete(r.Context(), userID, v["tripId"], v["postId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// likePost likes on PUT and unlikes on DELETE.
func (h *handler) likePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Posts.SetLike(r.Context(), userID, v["tripId"], v["postId"], r.Method == http.MethodPut)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) addComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	p, err := h.app.Posts.AddComment(r.Context(), userID, v["tripId"], v["postId"], payload.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Posts.DeleteComment(r.Context(), userID, v["tripId"], v["postId"], v["commentId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
