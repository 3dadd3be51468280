package http

import (
	"net/http"
	"net/url"
	"time"
)

const noticeCookie = "outlay_notice"

// setNotice stores a one-shot message shown on the next page render.
func setNotice(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popNotice reads and clears the pending notice, if any.
func popNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
