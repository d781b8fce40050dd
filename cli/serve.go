package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evalgo/jirasync/batch"
	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/httpapi"
	"github.com/evalgo/jirasync/security"
)

// serveCmd runs the read-only admin HTTP surface: health, Prometheus
// metrics, and cache/batch inspection. It holds its own cache registry
// and run tracker, since this process does not itself drive any sync;
// it is meant to run alongside whatever process (or cron schedule)
// invokes the root command's batch sync. Its /metrics endpoint serves
// this process's own Prometheus default registry, not the collectors the
// batch-sync process registers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the read-only admin HTTP surface (/healthz, /metrics, /admin/*)",
	RunE:  runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":8081", "address the admin HTTP surface listens on")
	serveCmd.Flags().String("jwt-secret", "", "bearer-token secret for /admin routes; empty disables auth (development only)")

	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("serve.jwt_secret", serveCmd.Flags().Lookup("jwt-secret"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := common.ServiceLogger("jirasync", "serve")

	cacheRegistry := cache.NewRegistry()
	tracker := batch.NewTracker(100)

	var jwt *security.JWTService
	if secret := viper.GetString("serve.jwt_secret"); secret != "" {
		jwt = security.NewJWTService(secret)
	} else {
		logger.Warn("no --jwt-secret set, /admin routes are unauthenticated")
	}

	server := httpapi.New(cacheRegistry, tracker, jwt)

	listen := viper.GetString("serve.listen")
	go func() {
		logger.WithField("listen", listen).Info("admin HTTP surface starting")
		if err := server.Echo.Start(listen); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("admin HTTP surface failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down admin HTTP surface")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin HTTP surface: %w", err)
	}
	lastExitCode = 0
	return nil
}
