package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tradegate/config"
	"tradegate/internal/dashboard"
	"tradegate/internal/greeks"
	"tradegate/internal/metrics"
	"tradegate/internal/session"
	"tradegate/internal/toolapi"
	"tradegate/logger"
)

// request is one line of the stdio protocol: an operation name plus its
// argument object. Responses echo the id so callers can pipeline.
type request struct {
	ID   int64           `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

type response struct {
	ID     int64            `json:"id"`
	Result any              `json:"result,omitempty"`
	Error  *toolapi.Failure `json:"error,omitempty"`
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Tradegate.Name,
		"version": cfg.Tradegate.Version,
	}).Info("starting tradegate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	sess, err := session.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to build session")
		os.Exit(1)
	}
	aggregator := greeks.New(sess, cfg.Aggregate.BatchSize, cfg.RateLimit.MaxPerSecond, log)
	api := toolapi.New(sess, aggregator)

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(cfg.Dashboard, log, sess)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Warn("dashboard server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	serveStdio(ctx, api, log)

	log.Info("starting graceful shutdown")
	sess.Disconnect()
	log.Info("tradegate stopped")
}

// serveStdio runs the line-oriented JSON loop: one request per line on
// stdin, one response per line on stdout. Operations run sequentially so
// responses come back in request order.
func serveStdio(ctx context.Context, api *toolapi.API, log *logger.Log) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			failure := toolapi.Failure{Type: "BadRequest", Message: err.Error()}
			_ = enc.Encode(response{Error: &failure})
			continue
		}

		result, err := api.Call(ctx, req.Op, req.Args)
		resp := response{ID: req.ID}
		if err != nil {
			failure := toolapi.ClassifyError(err)
			resp.Error = &failure
			log.WithError(err).WithFields(logger.Fields{"op": req.Op}).Debug("operation failed")
		} else {
			resp.Result = result
		}
		_ = enc.Encode(resp)
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("stdin read failed")
	}
}
