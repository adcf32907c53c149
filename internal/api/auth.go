// auth.go - Bearer token authentication for account and admin endpoints.

package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"

	"privatepay/internal/orchestrator"
	"privatepay/internal/types"
)

// ErrUnauthenticated is returned when a request carries no valid bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

// errForeignAccount rejects a request body naming an account other than the
// authenticated one.
var errForeignAccount = fmt.Errorf("%w: request acts for another account", orchestrator.ErrUnauthorized)

type digest [sha256.Size]byte

// Authenticator resolves bearer tokens to the administrator or to the account
// a key was issued for. Only digests of the secrets are kept.
type Authenticator struct {
	admin    digest
	accounts map[digest]types.Address
}

// NewAuthenticator builds an authenticator from the admin token and a map of
// account address to API key.
func NewAuthenticator(adminToken string, accountKeys map[string]string) (*Authenticator, error) {
	var result *multierror.Error
	if adminToken == "" {
		result = multierror.Append(result, errors.New("admin token is required"))
	}
	a := &Authenticator{
		admin:    sha256.Sum256([]byte(adminToken)),
		accounts: make(map[digest]types.Address, len(accountKeys)),
	}
	for raw, key := range accountKeys {
		account, err := types.ParseAddress(raw)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("account %s: %w", raw, err))
			continue
		}
		if account.IsZero() {
			result = multierror.Append(result, fmt.Errorf("account %s: zero address", raw))
			continue
		}
		if key == "" {
			result = multierror.Append(result, fmt.Errorf("account %s: empty key", raw))
			continue
		}
		d := sha256.Sum256([]byte(key))
		if d == a.admin {
			result = multierror.Append(result, fmt.Errorf("account %s: key equals the admin token", raw))
			continue
		}
		if other, ok := a.accounts[d]; ok {
			result = multierror.Append(result, fmt.Errorf("account %s: key already issued to %s", raw, other))
			continue
		}
		a.accounts[d] = account
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Authenticator) isAdmin(token string) bool {
	d := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(d[:], a.admin[:]) == 1
}

func (a *Authenticator) account(token string) (types.Address, bool) {
	account, ok := a.accounts[sha256.Sum256([]byte(token))]
	return account, ok
}

// principal is the identity a request was authenticated as.
type principal struct {
	admin   bool
	account types.Address
}

type principalKey struct{}

// authenticate resolves the bearer token of r. The zero principal means no
// valid credential.
func (s *Server) authenticate(r *http.Request) (principal, bool) {
	token, ok := bearerToken(r)
	if !ok || s.auth == nil {
		return principal{}, false
	}
	if s.auth.isAdmin(token) {
		return principal{admin: true}, true
	}
	if account, ok := s.auth.account(token); ok {
		return principal{account: account}, true
	}
	return principal{}, false
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get(AuthorizationHeader), "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// requireAdmin admits only requests carrying the admin token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.authenticate(r)
		if !ok {
			unauthenticated(w)
			return
		}
		if !p.admin {
			s.fail(w, fmt.Errorf("%w: administrator only", orchestrator.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// requireAccount admits requests carrying an account key, and the admin token
// when allowAdmin is set.
func (s *Server) requireAccount(allowAdmin bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.authenticate(r)
		if !ok {
			unauthenticated(w)
			return
		}
		if p.admin && !allowAdmin {
			s.fail(w, fmt.Errorf("%w: administrator cannot act for an account", orchestrator.ErrUnauthorized))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

// actingAccount returns the account a request acts for. named is the account
// the body or query names, zero when absent; an account key may only name its
// own account, the admin token must name one.
func actingAccount(r *http.Request, named types.Address) (types.Address, error) {
	p := principalFrom(r.Context())
	if p.admin {
		if named.IsZero() {
			return types.Address{}, badRequest{"missing account"}
		}
		return named, nil
	}
	if !named.IsZero() && named != p.account {
		return types.Address{}, errForeignAccount
	}
	return p.account, nil
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="privatepay"`)
	writeError(w, codeUnauthenticated, http.StatusUnauthorized, ErrUnauthenticated.Error())
}
