package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/travelties/service_layer/internal/app/services/checklists"
	"github.com/travelties/service_layer/internal/httputil"
)

func (h *handler) checklistRoutes(r *mux.Router) {
	r.HandleFunc("/trips/{tripId}/checklists", h.createChecklist).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/checklists", h.listChecklists).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}", h.getChecklist).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}", h.renameChecklist).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}", h.deleteChecklist).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}/items", h.addChecklistItem).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}/items", h.reorderChecklistItems).Methods(http.MethodPut)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}/items/{itemId}", h.updateChecklistItem).Methods(http.MethodPatch)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}/items/{itemId}", h.deleteChecklistItem).Methods(http.MethodDelete)
	r.HandleFunc("/trips/{tripId}/checklists/{listId}/items/{itemId}/toggle", h.toggleChecklistItem).Methods(http.MethodPost)
}

func (h *handler) createChecklist(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in checklists.CreateInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	cl, err := h.app.Checklists.Create(r.Context(), userID, vars(r)["tripId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cl)
}

func (h *handler) listChecklists(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	out, err := h.app.Checklists.List(r.Context(), userID, vars(r)["tripId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getChecklist(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.Get(r.Context(), userID, v["tripId"], v["listId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}

func (h *handler) renameChecklist(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title string `json:"title"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.Rename(r.Context(), userID, v["tripId"], v["listId"], payload.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}

func (h *handler) deleteChecklist(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	if err := h.app.Checklists.Delete(r.Context(), userID, v["tripId"], v["listId"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addChecklistItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in checklists.ItemInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.AddItem(r.Context(), userID, v["tripId"], v["listId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cl)
}

func (h *handler) reorderChecklistItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		ItemIDs []string `json:"itemIds"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.ReorderItems(r.Context(), userID, v["tripId"], v["listId"], payload.ItemIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}

func (h *handler) updateChecklistItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in checklists.ItemUpdate
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.UpdateItem(r.Context(), userID, v["tripId"], v["listId"], v["itemId"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}

func (h *handler) deleteChecklistItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.DeleteItem(r.Context(), userID, v["tripId"], v["listId"], v["itemId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}

func (h *handler) toggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	v := vars(r)
	cl, err := h.app.Checklists.ToggleItem(r.Context(), userID, v["tripId"], v["listId"], v["itemId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cl)
}
