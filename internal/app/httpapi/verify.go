package httpapi

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/travelties/service_layer/internal/auth"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

//go:embed templates/verify.html
var templateFS embed.FS

var verifyPage = template.Must(template.ParseFS(templateFS, "templates/verify.html"))

type verifyView struct {
	Title    string
	Message  string
	Email    string
	Success  bool
	DeepLink template.URL
}

// verifyEmail is the landing page of Firebase email verification links.
func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := verifyView{DeepLink: template.URL(h.opts.AppDeepLink)}
	status := http.StatusOK

	switch {
	case q.Get("mode") != "verifyEmail":
		view.Title = "Unsupported link"
		view.Message = "This link cannot be handled here."
		status = http.StatusBadRequest
	case h.opts.EmailVerifier == nil:
		err := svcerrors.NotConfigured("email verification")
		view.Title = "Verification failed"
		view.Message = auth.FriendlyMessage(err)
		status = http.StatusServiceUnavailable
	default:
		email, err := h.opts.EmailVerifier.ApplyCode(r.Context(), q.Get("oobCode"))
		view.Message = auth.FriendlyMessage(err)
		if err != nil {
			view.Title = "Verification failed"
			status = http.StatusBadRequest
			if se := svcerrors.GetServiceError(err); se != nil && se.Code == svcerrors.CodeUnavailable {
				status = http.StatusServiceUnavailable
			}
			h.log.WithContext(r.Context()).WithError(err).Info("email verification failed")
		} else {
			view.Title = "Email verified"
			view.Email = email
			view.Success = true
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := verifyPage.Execute(w, view); err != nil {
		h.log.WithError(err).Error("render verification page")
	}
}
