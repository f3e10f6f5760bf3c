// Package api exposes the reader state over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danmuck/p1ctl/internal/meter"
	"github.com/danmuck/p1ctl/internal/observability"
	"github.com/danmuck/p1ctl/internal/protocol/payload"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider is the read side of a meter.Service.
type Provider interface {
	Latest() (meter.Reading, bool)
	Stats() meter.Stats
	Source() string
}

// ReadingView is the JSON shape of a reading.
type ReadingView struct {
	Source   string            `json:"source"`
	Received time.Time         `json:"received"`
	Status   string            `json:"status"`
	Expected string            `json:"expected_crc,omitempty"`
	Actual   string            `json:"actual_crc,omitempty"`
	Telegram *payload.Telegram `json:"telegram,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func NewReadingView(rd meter.Reading) ReadingView {
	v := ReadingView{
		Source:   rd.Source,
		Received: rd.Received,
		Status:   rd.Result.Status.String(),
		Telegram: rd.Telegram,
	}
	if err := rd.Result.Err(); err != nil {
		v.Actual = fmt.Sprintf("%04X", rd.Result.Actual)
		if rd.Result.HasExpected {
			v.Expected = fmt.Sprintf("%04X", rd.Result.Expected)
		}
		v.Error = err.Error()
	} else if rd.ParseErr != nil {
		v.Error = rd.ParseErr.Error()
	}
	return v
}

var startedAt = time.Now()

func NewRouter(p Provider, corsOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("api")))
	r.Use(observability.RequestMetricsMiddleware())
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(startedAt).String(),
			"source": p.Source(),
		})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Stats())
	})
	r.GET("/telegram/latest", func(c *gin.Context) {
		rd, ok := p.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no telegram received yet"})
			return
		}
		c.JSON(http.StatusOK, NewReadingView(rd))
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Serve runs the router on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
