package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regionhooks.ai/internal/config"
	"regionhooks.ai/internal/persistence/varstore"
	"regionhooks.ai/internal/query"
	"regionhooks.ai/internal/script/luaregions"
	"regionhooks.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/regions.yaml", "regions config path")
		addr       = flag.String("addr", "", "http listen address (default: server.addr from config)")
		scriptPath = flag.String("script", "", "lua script to run at startup (optional)")
		saveEvery  = flag.Duration("save_every", time.Minute, "variable save interval (0 disables periodic saves)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[regiond] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	listen := strings.TrimSpace(*addr)
	if listen == "" {
		listen = cfg.Server.Addr
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := openBackends(cfg, promReg, logger)
	if err != nil {
		logger.Fatalf("open backends: %v", err)
	}
	defer rt.Close()

	vars := varstore.New(rt.registry, logger, varstore.Options{DropStale: cfg.Variables.DropStale})
	if err := vars.Load(cfg.Variables.Path); err != nil {
		logger.Fatalf("load variables: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	loop := query.NewLoop(rt.registry, rt.server, logger)
	if rt.lands != nil {
		loop.SetLands(rt.lands)
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("query loop stopped: %v", err)
		}
	}()

	if p := strings.TrimSpace(*scriptPath); p != "" {
		var scriptErr error
		err := loop.Exec(ctx, func() {
			state := luaregions.NewState(luaregions.Env{Registry: rt.registry, Platform: rt.server, Vars: vars, Log: logger})
			scriptErr = luaregions.RunFile(state, p)
		})
		if err == nil {
			err = scriptErr
		}
		if err != nil {
			logger.Fatalf("script: %v", err)
		}
		logger.Printf("ran script %s", p)
	}

	if *saveEvery > 0 {
		go func() {
			ticker := time.NewTicker(*saveEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					var saveErr error
					if err := loop.Exec(ctx, func() { saveErr = vars.Save(cfg.Variables.Path) }); err != nil {
						return
					}
					if saveErr != nil {
						logger.Printf("save variables: %v", saveErr)
					}
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/ws", ws.NewServer(loop, logger).Handler())
	// Local-only: land administration for claimadmin -server.
	mux.HandleFunc("/admin/v1/ws", loopbackOnly(ws.NewAdminServer(loop, logger).Handler()))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (providers=%d)", listen, len(rt.registry.Providers()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has exited, so this goroutine is the only one touching regions.
	<-loopDone
	if err := vars.Save(cfg.Variables.Path); err != nil {
		logger.Printf("save variables: %v", err)
	}
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
