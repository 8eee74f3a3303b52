package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/internal/httputil"
	"github.com/travelties/service_layer/pkg/logger"
)

// DefaultCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const DefaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultCertTTL = time.Hour

var maxAgePattern = regexp.MustCompile(`max-age=(\d+)`)

// FirebaseClaims are the claims of a Firebase ID token.
type FirebaseClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	AuthTime      int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// FirebaseOptions configures a FirebaseVerifier.
type FirebaseOptions struct {
	ProjectID  string
	CertsURL   string
	HTTPClient *http.Client
	// Now overrides the clock in tests.
	Now func() time.Time
}

// FirebaseVerifier validates RS256 ID tokens against Google's rotating
// certificates. Certificates are cached for the max-age the endpoint returns.
type FirebaseVerifier struct {
	projectID string
	issuer    string
	certsURL  string
	client    *httputil.Client
	now       func() time.Time
	log       *logger.Logger

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewFirebaseVerifier creates a verifier for the given project.
func NewFirebaseVerifier(opts FirebaseOptions, log *logger.Logger) *FirebaseVerifier {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	certsURL := opts.CertsURL
	if certsURL == "" {
		certsURL = DefaultCertsURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FirebaseVerifier{
		projectID: opts.ProjectID,
		issuer:    "https://securetoken.google.com/" + opts.ProjectID,
		certsURL:  certsURL,
		client:    httputil.NewClient(httputil.ClientConfig{HTTPClient: opts.HTTPClient}),
		now:       now,
		log:       log,
	}
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	claims := &FirebaseClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.publicKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, errors.InvalidToken(err)
	}
	if !token.Valid {
		return Identity{}, errors.InvalidToken(nil)
	}
	if claims.Subject == "" {
		return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "empty subject")
	}
	if claims.AuthTime == 0 || time.Unix(claims.AuthTime, 0).After(v.now()) {
		return Identity{}, errors.InvalidToken(nil).WithDetails("reason", "auth_time in the future")
	}
	return Identity{UID: claims.Subject, Email: claims.Email, EmailVerified: claims.EmailVerified}, nil
}

func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := v.now().Before(v.expires)
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	resp, err := v.client.Get(ctx, v.certsURL)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	ttl := cacheTTL(resp.Header.Get("Cache-Control"))

	var certs map[string]string
	if err := httputil.DecodeResponse(resp, &certs); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}

	keys, err := parseCertificates(certs)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.expires = v.now().Add(ttl)
	v.mu.Unlock()

	v.log.WithField("keys", len(keys)).WithField("ttl", ttl.String()).Debug("refreshed token signing certificates")
	return nil
}

func cacheTTL(header string) time.Duration {
	m := maxAgePattern.FindStringSubmatch(header)
	if len(m) != 2 {
		return defaultCertTTL
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return defaultCertTTL
	}
	return time.Duration(secs) * time.Second
}

func parseCertificates(certs map[string]string) (map[string]*rsa.PublicKey, error) {
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return nil, fmt.Errorf("certificate %q is not PEM encoded", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate %q: %w", kid, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate %q does not hold an RSA key", kid)
		}
		keys[kid] = pub
	}
	return keys, nil
}
