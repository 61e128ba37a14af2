package benchmarks

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/labstack/echo/v4"

	"github.com/wattforge/ember"
	"github.com/wattforge/ember/core"
)

// Scenario: a static route returning a small JSON body, the same shape
// bolt/benchmarks/benchmark_full_test.go's BenchmarkFull_*_StaticRoute
// compares across frameworks.

func BenchmarkFull_Ember_StaticRoute(b *testing.B) {
	app := ember.New()
	app.Register("GET", "/ping", func(ctx *core.Context) error {
		return ctx.JSON("200", map[string]string{"message": "pong"})
	})

	buf := []byte("GET /ping HTTP/1.1\r\nHost: example.com\r\n\r\n")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		app.ProcessBuffer(buf)
	}
}

func BenchmarkFull_Gin_StaticRoute(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Body.Reset()
		r.ServeHTTP(w, req)
	}
}

func BenchmarkFull_Echo_StaticRoute(b *testing.B) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"message": "pong"})
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Body.Reset()
		e.ServeHTTP(w, req)
	}
}

func BenchmarkFull_Fiber_StaticRoute(b *testing.B) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})

	req := httptest.NewRequest("GET", "/ping", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := app.Test(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
