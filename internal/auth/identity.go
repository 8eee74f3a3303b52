package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/internal/httputil"
	"github.com/travelties/service_layer/pkg/logger"
)

// DefaultIdentityURL is the Identity Toolkit REST endpoint.
const DefaultIdentityURL = "https://identitytoolkit.googleapis.com"

var (
	ErrCodeExpired  = stderrors.New("verification link expired")
	ErrCodeInvalid  = stderrors.New("verification link invalid")
	ErrUserDisabled = stderrors.New("account disabled")
	ErrUserNotFound = stderrors.New("account not found")
)

// EmailVerifier applies out-of-band email verification codes.
type EmailVerifier struct {
	client *httputil.Client
	apiKey string
	log    *logger.Logger
}

// NewEmailVerifier creates a verifier calling baseURL with the project's web API key.
func NewEmailVerifier(baseURL, apiKey string, hc *http.Client, log *logger.Logger) *EmailVerifier {
	if log == nil {
		log = logger.NewDefault("email-verification")
	}
	if baseURL == "" {
		baseURL = DefaultIdentityURL
	}
	return &EmailVerifier{
		client: httputil.NewClient(httputil.ClientConfig{BaseURL: baseURL, HTTPClient: hc}),
		apiKey: apiKey,
		log:    log,
	}
}

// ApplyCode confirms the email address bound to oobCode and returns it.
func (v *EmailVerifier) ApplyCode(ctx context.Context, oobCode string) (string, error) {
	if v.apiKey == "" {
		return "", errors.NotConfigured("email verification")
	}
	if strings.TrimSpace(oobCode) == "" {
		return "", ErrCodeInvalid
	}

	path := "/v1/accounts:update?key=" + url.QueryEscape(v.apiKey)
	resp, err := v.client.Post(ctx, path, map[string]string{"oobCode": oobCode})
	if err != nil {
		return "", fmt.Errorf("identity toolkit: %w", err)
	}
	defer resp.Body.Close()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil {
		return "", fmt.Errorf("read identity toolkit response: %w", err)
	}

	if resp.StatusCode >= 400 {
		reason := gjson.GetBytes(body, "error.message").String()
		v.log.WithField("status", resp.StatusCode).WithField("reason", reason).Warn("email verification rejected")
		return "", classifyReason(reason)
	}
	return gjson.GetBytes(body, "email").String(), nil
}

// classifyReason maps Identity Toolkit error codes such as
// "INVALID_OOB_CODE" or "TOO_MANY_ATTEMPTS_TRY_LATER : ..." to sentinels.
func classifyReason(reason string) error {
	code := strings.TrimSpace(strings.SplitN(reason, ":", 2)[0])
	switch code {
	case "EXPIRED_OOB_CODE":
		return ErrCodeExpired
	case "INVALID_OOB_CODE":
		return ErrCodeInvalid
	case "USER_DISABLED":
		return ErrUserDisabled
	case "USER_NOT_FOUND", "EMAIL_NOT_FOUND":
		return ErrUserNotFound
	}
	if code == "" {
		code = "UNKNOWN"
	}
	return fmt.Errorf("identity toolkit error %s", code)
}

// FriendlyMessage turns a verification error into text for the web page.
func FriendlyMessage(err error) string {
	switch {
	case err == nil:
		return "Your email address has been verified. You can return to the app."
	case stderrors.Is(err, ErrCodeExpired):
		return "This verification link has expired. Request a new one from the app."
	case stderrors.Is(err, ErrCodeInvalid):
		return "This verification link is invalid or has already been used."
	case stderrors.Is(err, ErrUserDisabled):
		return "This account has been disabled."
	case stderrors.Is(err, ErrUserNotFound):
		return "We could not find an account for this link."
	}
	if se := errors.GetServiceError(err); se != nil && se.Code == errors.CodeUnavailable {
		return "Email verification is not available right now."
	}
	return "Something went wrong while verifying your email. Please try again."
}
