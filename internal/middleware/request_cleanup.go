package middleware

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// maxDrainBytes bounds how much of an unread body is discarded to keep the connection alive.
const maxDrainBytes = 256 << 10

// DrainAndCloseRequest discards what a handler left unread (up to maxDrainBytes) and closes the body.
// Bodies larger than that close the connection instead of being read to the end.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}

			n, _ := io.CopyN(io.Discard, r.Body, maxDrainBytes+1)
			if n > maxDrainBytes {
				log.Tracef("request body of [%s %s] not drained, over %d bytes left unread", r.Method, r.URL.Path, maxDrainBytes)
			}
			_ = r.Body.Close()
		})
	}
}
