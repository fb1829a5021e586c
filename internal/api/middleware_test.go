package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWKSServer(t *testing.T, kid string, key *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	var hits int32
	server := newJWKSServer(t, "ins_1", &key.PublicKey, &hits)
	verifier := NewJWKSVerifier(server.URL, "", "https://clerk.example.com")

	valid := signRS256(t, key, "ins_1", jwt.MapClaims{
		"sub": "user_jwks",
		"iss": "https://clerk.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	subject, err := verifier.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, "user_jwks", subject)

	_, err = verifier.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "keys should be served from cache")

	wrongIssuer := signRS256(t, key, "ins_1", jwt.MapClaims{
		"sub": "user_jwks",
		"iss": "https://evil.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = verifier.Verify(wrongIssuer)
	assert.Error(t, err)

	unknownKid := signRS256(t, key, "ins_2", jwt.MapClaims{
		"sub": "user_jwks",
		"iss": "https://clerk.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = verifier.Verify(unknownKid)
	assert.Error(t, err)
}

func TestHMACVerifier(t *testing.T) {
	verifier := NewHMACVerifier(testSecret, "banksystem", "")

	sign := func(secret string, claims jwt.MapClaims) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	tests := []struct {
		name    string
		token   string
		subject string
		wantErr bool
	}{
		{
			name:    "valid",
			token:   sign(testSecret, jwt.MapClaims{"sub": "user_1", "aud": "banksystem", "exp": time.Now().Add(time.Hour).Unix()}),
			subject: "user_1",
		},
		{
			name:    "expired",
			token:   sign(testSecret, jwt.MapClaims{"sub": "user_1", "aud": "banksystem", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing expiry",
			token:   sign(testSecret, jwt.MapClaims{"sub": "user_1", "aud": "banksystem"}),
			wantErr: true,
		},
		{
			name:    "wrong audience",
			token:   sign(testSecret, jwt.MapClaims{"sub": "user_1", "aud": "other", "exp": time.Now().Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   sign("another-secret", jwt.MapClaims{"sub": "user_1", "aud": "banksystem", "exp": time.Now().Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing subject",
			token:   sign(testSecret, jwt.MapClaims{"aud": "banksystem", "exp": time.Now().Add(time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := verifier.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	verifier := NewHMACVerifier(testSecret, "", "")
	var seen string
	handler := AuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClerkUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, "user_mw"), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "user_mw", seen)
}

func TestParseRSAPublicKey(t *testing.T) {
	_, err := parseRSAPublicKey("!!", "AQAB")
	assert.Error(t, err)

	_, err = parseRSAPublicKey("AQAB", "")
	assert.Error(t, err)

	key, err := parseRSAPublicKey("AQAB", "AQAB")
	require.NoError(t, err)
	assert.Equal(t, 65537, key.E)
}
