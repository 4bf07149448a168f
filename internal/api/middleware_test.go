package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestClientLimitersPerIP(t *testing.T) {
	l := newClientLimiters()
	for i := 0; i < limiterBurst; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d inside the burst denied", i)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("burst exhausted but still allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("one client's burst throttled another")
	}
}

func TestClientLimitersSweep(t *testing.T) {
	l := newClientLimiters()
	l.allow("10.0.0.1")
	l.buckets["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	l.sweep(limiterIdle)
	if len(l.buckets) != 0 {
		t.Fatal("idle bucket survived the sweep")
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TimeoutMiddleware(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
		case <-time.After(time.Second):
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d, expected the deadline to win", w.Code)
	}
}
