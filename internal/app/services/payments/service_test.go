package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

type fakeSettlements struct {
	st        expense.Settlement
	attached  string
	completed []string
}

func (f *fakeSettlements) Settlement(_ context.Context, _, tripID, id string) (expense.Settlement, error) {
	if id != f.st.ID || tripID != f.st.TripID {
		return expense.Settlement{}, svcerrors.NotFound("settlement", id)
	}
	return f.st, nil
}

func (f *fakeSettlements) AttachPaymentIntent(_ context.Context, st expense.Settlement, intentID string) (expense.Settlement, error) {
	f.attached = intentID
	st.PaymentIntentID = intentID
	f.st = st
	return st, nil
}

func (f *fakeSettlements) CompleteByPaymentIntent(_ context.Context, intentID string) (expense.Settlement, error) {
	if intentID != f.st.PaymentIntentID {
		return expense.Settlement{}, svcerrors.NotFound("settlement", intentID)
	}
	f.completed = append(f.completed, intentID)
	f.st.Status = expense.SettlementCompleted
	return f.st, nil
}

func pending() *fakeSettlements {
	return &fakeSettlements{st: expense.Settlement{
		ID: "s1", TripID: "t1", From: "u2", To: "u1",
		Amount: decimal.RequireFromString("12.5"), Currency: "EUR", Status: expense.SettlementPending,
	}}
}

func stripeServer(t *testing.T, form *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/payment_intents") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		parsed, _ := url.ParseQuery(string(body))
		*form = parsed
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","amount":1250,"currency":"eur","status":"requires_payment_method"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func backends(url string, log *logger.Logger) *stripe.Backends {
	return &stripe.Backends{API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     log,
	})}
}

func TestCreateIntent(t *testing.T) {
	var form url.Values
	srv := stripeServer(t, &form)
	log := logger.NewWithWriter("payments", io.Discard)
	fake := pending()
	svc := New(Options{SecretKey: "sk_test_123", Backends: backends(srv.URL, log)}, fake, log)
	require.True(t, svc.Enabled())

	intent, err := svc.CreateIntent(context.Background(), "u2", "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.PaymentIntentID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, int64(1250), intent.Amount)
	assert.Equal(t, "eur", intent.Currency)
	assert.Equal(t, "pi_123", fake.attached)

	assert.Equal(t, "1250", form.Get("amount"))
	assert.Equal(t, "eur", form.Get("currency"))
	assert.Equal(t, "t1", form.Get("metadata[trip_id]"))
	assert.Equal(t, "s1", form.Get("metadata[settlement_id]"))
}

func TestCreateIntentRules(t *testing.T) {
	ctx := context.Background()
	disabled := New(Options{}, pending(), nil)
	_, err := disabled.CreateIntent(ctx, "u2", "t1", "s1")
	assert.Equal(t, http.StatusNotImplemented, svcerrors.HTTPStatus(err))

	log := logger.NewWithWriter("payments", io.Discard)
	fake := pending()
	svc := New(Options{SecretKey: "sk_test_123", Backends: backends("http://127.0.0.1:1", log)}, fake, log)

	_, err = svc.CreateIntent(ctx, "u1", "t1", "s1")
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
	_, err = svc.CreateIntent(ctx, "u2", "t1", "nope")
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)

	fake.st.Status = expense.SettlementCompleted
	_, err = svc.CreateIntent(ctx, "u2", "t1", "s1")
	assert.ErrorIs(t, err, svcerrors.ErrConflict)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(expense.Settlement{Amount: decimal.RequireFromString("19.99"), Currency: "USD"}))
	assert.Equal(t, int64(1500), MinorUnits(expense.Settlement{Amount: decimal.RequireFromString("1500"), Currency: "JPY"}))
}

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	const secret = "whsec_test"
	fake := pending()
	fake.st.PaymentIntentID = "pi_123"
	svc := New(Options{SecretKey: "sk_test_123", WebhookSecret: secret}, fake, logger.NewWithWriter("payments", io.Discard))

	succeeded := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"settlement_id":"s1"}}}}`)
	require.NoError(t, svc.HandleWebhook(ctx, succeeded, sign(succeeded, secret)))
	assert.Equal(t, []string{"pi_123"}, fake.completed)

	err := svc.HandleWebhook(ctx, succeeded, sign(succeeded, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, svcerrors.HTTPStatus(err))

	other := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_123"}}}`)
	require.NoError(t, svc.HandleWebhook(ctx, other, sign(other, secret)))
	assert.Len(t, fake.completed, 1)

	unknown := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_999"}}}`)
	require.NoError(t, svc.HandleWebhook(ctx, unknown, sign(unknown, secret)))

	err = New(Options{}, fake, nil).HandleWebhook(ctx, succeeded, "")
	assert.Equal(t, http.StatusNotImplemented, svcerrors.HTTPStatus(err))
}
