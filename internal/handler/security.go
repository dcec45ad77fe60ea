package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bytebuy/internal/domain/auth"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves key to its stored record. The stored hash is compared
// in constant time against the computed one.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(key, s.pepper)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Warn("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// Middleware rejects requests without a valid api_key header with 401 and
// tags the request logger with the key ID otherwise.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			respondMessage(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
