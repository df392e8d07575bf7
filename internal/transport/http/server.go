package http

import (
	"net/http"
)

// NewMux routes the health probe, the chat socket and, when given, metrics.
func NewMux(ws *WSHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}
