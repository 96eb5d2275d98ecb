// Package identity resolves the opaque user id a request acts for.
//
// Resolvers return ("", nil) when their source is absent so that a Chain can
// fall through to the next one. A source that is present but invalid (a
// malformed or expired bearer token) is an error wrapping
// core.ErrUnauthenticated and stops the chain.
package identity

import (
	"net/http"
	"strings"

	"monthbook/internal/core"
)

const (
	HeaderUserID = "X-User-ID"
	CookieUserID = "userId"
)

type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) { return f(r) }

// Header reads the user id from a request header.
func Header(name string) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		return strings.TrimSpace(r.Header.Get(name)), nil
	})
}

// Cookie reads the user id from a cookie.
func Cookie(name string) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil {
			return "", nil
		}
		return strings.TrimSpace(c.Value), nil
	})
}

// Chain tries resolvers in order and returns the first user id found.
type Chain []Resolver

func (c Chain) Resolve(r *http.Request) (string, error) {
	for _, res := range c {
		if res == nil {
			continue
		}
		id, err := res.Resolve(r)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", core.ErrUnauthenticated
}

// Default builds the standard chain. Without a token secret the user id is
// taken from the X-User-ID header, then the userId cookie. With a secret only
// a verified bearer token is accepted, so neither plain source can stand in
// for it.
func Default(tokenSecret string) Chain {
	if tokenSecret != "" {
		return Chain{NewBearer([]byte(tokenSecret))}
	}
	return Chain{Header(HeaderUserID), Cookie(CookieUserID)}
}
