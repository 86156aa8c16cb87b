package runtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// NewHealthRouter returns the router served next to the poll loop.
func NewHealthRouter(worker string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(pkglog.L()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "worker": worker})
	})
	return r
}

// serveHealth runs the health server until ctx is cancelled.
func serveHealth(ctx context.Context, addr, worker string) error {
	l := pkglog.L()
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHealthRouter(worker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", addr).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
