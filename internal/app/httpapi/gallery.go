package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/gallery"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) galleryRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/photos", h.listPhotos).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/photos/uploads", h.createUpload).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/photos/{photoId}", h.getPhoto).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/photos/{photoId}", h.updatePhoto).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/photos/{photoId}", h.deletePhoto).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/photos/{photoId}/complete", h.completeUpload).Methods(http.MethodPost)

	r.HandleFunc("/trips/{tripId}/albums", h.createAlbum).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/albums", h.listAlbums).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/albums/{albumId}", h.updateAlbum).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/albums/{albumId}", h.deleteAlbum).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/albums/{albumId}/photos", h.addAlbumPhotos).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/albums/{albumId}/photos/{photoId}", h.removeAlbumPhoto).Methods(http.MethodDelete)
}

func (h *handler) listPhotos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Gallery.List(r.Context(), userID, vars(r)["tripId"], r.URL.Query().Get("album"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) createUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in gallery.UploadInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	up, err := h.app.Gallery.CreateUpload(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, up)
}

func (h *handler) getPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Gallery.Get(r.Context(), userID, v["tripId"], v["photoId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) updatePhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Caption string `json:"caption"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	p, err := h.app.Gallery.UpdateCaption(r.Context(), userID, v["tripId"], v["photoId"], payload.Caption)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Gallery.Delete(r.Context(), userID, v["tripId"], v["photoId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) completeUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	p, err := h.app.Gallery.Complete(r.Context(), userID, v["tripId"], v["photoId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) createAlbum(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	a, err := h.app.Gallery.CreateAlbum(r.Context(), userID, vars(r)["tripId"], payload.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *handler) listAlbums(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Gallery.ListAlbums(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) updateAlbum(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in gallery.AlbumUpdate
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	a, err := h.app.Gallery.UpdateAlbum(r.Context(), userID, v["tripId"], v["albumId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Gallery.DeleteAlbum(r.Context(), userID, v["tripId"], v["albumId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		PhotoIDs []string `json:"photoIds"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	a, err := h.app.Gallery.AddPhotos(r.Context(), userID, v["tripId"], v["albumId"], payload.PhotoIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) removeAlbumPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	a, err := h.app.Gallery.RemovePhoto(r.Context(), userID, v["tripId"], v["albumId"], v["photoId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}
