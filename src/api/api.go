// File: src/api/api.go

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stake-plus/factcheck/src/api/config"
	"github.com/stake-plus/factcheck/src/api/webserver"
	"github.com/stake-plus/factcheck/src/llm"
	"github.com/stake-plus/factcheck/src/orchestrator"
	"github.com/stake-plus/factcheck/src/retrieval"
	"github.com/stake-plus/factcheck/src/trial"
)

func main() {
	cfg := config.Load()

	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	quota := trial.NewMeter(cfg.Trial)
	retriever := retrieval.NewService(retrieval.Config{Timeout: cfg.RetrievalTimeout})
	llmClient := llm.NewClient(cfg.LLMTimeout)
	orch := orchestrator.New(llmClient, retriever, quota)

	router := webserver.New(cfg, orch, quota)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // fact-checks wait on the upstream model
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("FactCheck API listening on %s (trial mode: %v)", cfg.Port, quota.Enabled())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
