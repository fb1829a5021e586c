/**
 * @description
 * Bearer-token authentication for the HTTP router. Tokens are verified either
 * against an RS256 JWKS endpoint (Clerk) or a shared HS256 secret, and the
 * verified `sub` claim is stored in the request context.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: token parsing and claim validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDContextKey is a custom type for the context key to avoid collisions.
type UserIDContextKey string

const clerkUserIDKey UserIDContextKey = "clerkUserID"

const (
	jwksCacheTTL       = 5 * time.Minute
	jwksMinRefreshWait = 30 * time.Second
)

// TokenVerifier validates bearer tokens and extracts the subject.
type TokenVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

func parserOptions(methods []string, audience, issuer string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return opts
}

// NewJWKSVerifier verifies RS256 tokens with keys fetched from jwksURL.
func NewJWKSVerifier(jwksURL, audience, issuer string) *TokenVerifier {
	cache := &jwksCache{
		url:    jwksURL,
		client: &http.Client{Timeout: 10 * time.Second},
		keys:   make(map[string]*rsa.PublicKey),
	}
	return &TokenVerifier{
		keyfunc: func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("kid not found in token header")
			}
			return cache.key(kid)
		},
		parser: jwt.NewParser(parserOptions([]string{"RS256", "RS384", "RS512"}, audience, issuer)...),
	}
}

// NewHMACVerifier verifies HS256 tokens signed with secret.
func NewHMACVerifier(secret, audience, issuer string) *TokenVerifier {
	key := []byte(secret)
	return &TokenVerifier{
		keyfunc: func(token *jwt.Token) (interface{}, error) { return key, nil },
		parser:  jwt.NewParser(parserOptions([]string{"HS256"}, audience, issuer)...),
	}
}

// Verify parses tokenString and returns its subject.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", errors.New("subject not found in token")
	}
	return subject, nil
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(verifier *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			subject, err := verifier.Verify(strings.TrimSpace(tokenString))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), clerkUserIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClerkUserID retrieves the authenticated subject from the request context.
func GetClerkUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(clerkUserIDKey).(string)
	return userID, ok
}

type jwksCache struct {
	url    string
	client *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func (c *jwksCache) key(kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[kid]
	age := time.Since(c.fetchedAt)
	if ok && age < jwksCacheTTL {
		return key, nil
	}

	// Unknown kids force a refresh, at most once per jwksMinRefreshWait.
	if c.fetchedAt.IsZero() || age >= jwksMinRefreshWait {
		if err := c.refreshLocked(); err != nil {
			if ok {
				return key, nil
			}
			return nil, err
		}
		key, ok = c.keys[kid]
	}
	if !ok {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return key, nil
}

func (c *jwksCache) refreshLocked() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("jwks key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	c.keys = keys
	c.fetchedAt = time.Now()
	return nil
}

// parseRSAPublicKey builds a key from base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	if exp == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}
