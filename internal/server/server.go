// Package server exposes the local control surface: a websocket event stream
// for the browser page and a small JSON API for chat, capture, recording, and
// history.
package server

import (
	"log"
	"net/http"
)

func Handler(hub *Hub, store TurnStore, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	return mux
}

func Serve(addr string, hub *Hub, store TurnStore, controls ControlHooks) error {
	log.Printf("control API at http://%s", addr)
	return http.ListenAndServe(addr, Handler(hub, store, controls))
}
