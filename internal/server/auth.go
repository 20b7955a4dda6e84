package server

import (
	"net/http"
	"time"
)

const tokenCookieName = "ll_token"

// authMiddleware protects admin endpoints. The token can arrive as a
// query parameter (first visit, exchanged for a cookie and redirected)
// or as the cookie itself.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queryToken := r.URL.Query().Get("token")
		if queryToken != "" {
			if queryToken != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     tokenCookieName,
				Value:    s.token,
				Path:     "/",
				HttpOnly: true,
				MaxAge:   int(24 * time.Hour / time.Second),
				SameSite: http.SameSiteLaxMode,
			})

			newURL := *r.URL
			q := newURL.Query()
			q.Del("token")
			newURL.RawQuery = q.Encode()
			http.Redirect(w, r, newURL.String(), http.StatusFound)
			return
		}

		cookie, err := r.Cookie(tokenCookieName)
		if err != nil || cookie.Value != s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
