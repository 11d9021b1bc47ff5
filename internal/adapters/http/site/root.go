// Package site serves the embedded landing page of the gradebook service.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the landing page and its assets to r.
//
//	GET /          -> index.html
//	GET /assets/*  -> embedded static files
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/", HandleRoot)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(FS())))
}

// HandleRoot serves the landing page.
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, staticFS, "static/index.html")
}
