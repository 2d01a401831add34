package httpx

import (
	"net/http"
)

type healthBody struct {
	Status string `json:"status"`
	SignIn string `json:"sign_in"`
}

// healthHandler answers liveness probes. The process stays live when sign-in
// is misconfigured; the body reports it so operators can alert on it.
func healthHandler(auth SessionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{Status: "ok", SignIn: "available"}
		if auth == nil || !auth.Available() {
			body.SignIn = "unavailable"
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
