package client

import "net/http"

// Credential is an opaque authorizer applied unmodified to every
// outbound artifact request.
type Credential interface {
	Apply(r *http.Request)
}

// CredentialFunc adapts a func to a Credential.
type CredentialFunc func(r *http.Request)

func (f CredentialFunc) Apply(r *http.Request) { f(r) }

// Bearer sets an `Authorization: Bearer <token>` header.
func Bearer(token string) Credential {
	return Header("Authorization", "Bearer "+token)
}

// Basic sets HTTP basic auth.
func Basic(username, password string) Credential {
	return CredentialFunc(func(r *http.Request) {
		r.SetBasicAuth(username, password)
	})
}

// Header sets an arbitrary header, e.g. a registry-specific token header.
func Header(name, value string) Credential {
	return CredentialFunc(func(r *http.Request) {
		r.Header.Set(name, value)
	})
}
