package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/factory"
	"phone-auth-service/internal/handler"
	"phone-auth-service/internal/util"
)

func main() {
	ctx := context.Background()

	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory(ctx)
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()
	f.EnsureSearchIndex(ctx)

	router := setupRouter(f)

	if cfg.Server.EnableTLS {
		startTLSServers(f, cfg, router)
		return
	}

	util.Warn("Starting HTTP server - TLS is disabled",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.Port),
	)
	server := newServer(cfg, cfg.GetServerAddress(), router)
	go serve(server, false)
	waitForShutdown(f, server)
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) http.Handler {
	services := f.ServiceFactory()
	auth := handler.NewAuthHandler(
		services.RegistrationService(),
		services.LoginOtpService(),
		services.PhoneVerificationService(),
		services.AuthService(),
	)
	search := handler.NewSearchHandler(services.UserSearchService())

	return handler.NewRouter(auth, search, util.Get(), handler.RouterOptions{
		RequireHTTPS: f.Config().Server.EnableTLS,
		Ready:        f.HealthCheck,
	})
}

func newServer(cfg *config.Config, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// startTLSServers serves the API over TLS. With AutoCert a plain HTTP
// listener answers ACME challenges and redirects everything else.
func startTLSServers(f *factory.Factory, cfg *config.Config, router http.Handler) {
	tlsManager := f.TLSManager()

	httpsServer := newServer(cfg, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.TLSPort), router)
	httpsServer.TLSConfig = tlsManager.GetTLSConfig()

	var httpServer *http.Server
	if cfg.Server.AutoCert {
		httpServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           tlsManager.HTTPHandler(nil),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go serve(httpServer, false)
	}

	util.Info("Starting HTTPS server",
		util.String("environment", cfg.Environment),
		util.Int("port", cfg.Server.TLSPort),
		util.Bool("auto_cert", cfg.Server.AutoCert),
	)
	go serve(httpsServer, true)

	waitForShutdown(f, httpsServer, httpServer)
}

func serve(server *http.Server, useTLS bool) {
	var err error
	if useTLS {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		util.Fatal("Server failed to start", util.String("address", server.Addr), util.ErrorField(err))
	}
}

func waitForShutdown(f *factory.Factory, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
		} else {
			util.Info("Server shutdown completed", util.String("address", srv.Addr))
		}
	}
	f.Close()
}
