package handlers

import (
	"net/http"
	"time"
)

// CreateCookie builds the HTTP-only SameSite=Lax cookie both tokens and the
// session marker travel in.
func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// DeleteCookie expires a cookie previously set by CreateCookie.
func DeleteCookie(name, path string) *http.Cookie {
	c := CreateCookie(name, "", path, time.Now().Add(-time.Hour))
	c.MaxAge = -1
	return c
}
