package site

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a router with the site registered", t, func() {
		r := chi.NewRouter()
		Register(r)

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			return w
		}

		Convey("Then / serves the landing page", func() {
			w := get("/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
			So(w.Body.String(), ShouldContainSubstring, "/api-docs")
		})

		Convey("And assets are served from /assets/", func() {
			w := get("/assets/site.css")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
		})

		Convey("And unknown assets are not found", func() {
			So(get("/assets/missing.js").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil router", t, func() {
		So(func() { Register(nil) }, ShouldPanic)
	})
}
