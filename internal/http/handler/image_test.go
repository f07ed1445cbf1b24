package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/http/handler"
	"basegraph.app/scribe/internal/store"
)

var _ = Describe("ImageHandler", func() {
	var router *gin.Engine

	BeforeEach(func() {
		blobs, err := store.NewLocalBlobStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		_, err = blobs.Put(context.Background(), "ACME", "login.png", strings.NewReader("fake-png"), 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = blobs.Put(context.Background(), "ACME", "flow.svg",
			strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`), 0)
		Expect(err).NotTo(HaveOccurred())

		router = gin.New()
		router.GET("/images/:project_key/:name", handler.NewImageHandler(blobs).Serve)
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("serves a stored image with its content type", func() {
		w := get("/images/ACME/login.png")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(Equal("image/png"))
		Expect(w.Body.String()).To(Equal("fake-png"))
	})

	It("serves uploads with script disabled", func() {
		for _, path := range []string{"/images/ACME/login.png", "/images/ACME/flow.svg"} {
			w := get(path)

			Expect(w.Code).To(Equal(http.StatusOK), path)
			Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"), path)
			csp := w.Header().Get("Content-Security-Policy")
			Expect(csp).To(ContainSubstring("default-src 'none'"), path)
			Expect(csp).To(ContainSubstring("sandbox"), path)
			Expect(csp).NotTo(ContainSubstring("script-src"), path)
		}
	})

	It("returns 404 for an unknown image", func() {
		Expect(get("/images/ACME/missing.png").Code).To(Equal(http.StatusNotFound))
	})

	It("does not serve names that need sanitizing", func() {
		Expect(get("/images/ACME/..%2Fsecret.png").Code).To(Equal(http.StatusNotFound))
	})
})
