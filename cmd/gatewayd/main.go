// Command gatewayd runs the realtime ASR gateway: HTTP ingest, SSE,
// and health/metrics on one gin engine, WebSocket signalling (and the
// WebRTC media it negotiates) on a second, grounded on the teacher's
// cmd/assistant-api main wiring and spec.md §6's concrete port split.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"google.golang.org/grpc"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr"
	"github.com/rapidaai/realtime-asr-gateway/internal/asr/rpc"
	"github.com/rapidaai/realtime-asr-gateway/internal/audio/pipeline"
	"github.com/rapidaai/realtime-asr-gateway/internal/config"
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/metrics"
	"github.com/rapidaai/realtime-asr-gateway/internal/orchestrator"
	"github.com/rapidaai/realtime-asr-gateway/internal/resource"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
	"github.com/rapidaai/realtime-asr-gateway/internal/signalling"
	"github.com/rapidaai/realtime-asr-gateway/internal/token"
	"github.com/rapidaai/realtime-asr-gateway/internal/transport/httpio"
	"github.com/rapidaai/realtime-asr-gateway/internal/transport/webrtcio"
	"github.com/rapidaai/realtime-asr-gateway/internal/transport/wsio"
)

// mustGatewayErr wraps a plain error into the gateway's error taxonomy
// for transports that only accept *gatewayerr.Error.
func mustGatewayErr(err error) *gatewayerr.Error {
	if ge, ok := gatewayerr.As(err); ok {
		return ge
	}
	return gatewayerr.Wrap(gatewayerr.Transport, "webrtc negotiation failed", err)
}

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := logging.New(os.Getenv("GATEWAY_ENV") != "production")
	if err != nil {
		return 1
	}
	defer logger.Sync()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Errorw("failed to load configuration", "error", err)
		return 1
	}

	resources := resource.New(cfg.System.Resources.MaxConcurrentSessions,
		time.Duration(cfg.System.Resources.SessionTimeoutS*float64(time.Second)))

	validator := buildValidator(cfg)

	iceServers := make([]session.IceServer, 0, len(cfg.System.Signaling.IceServers))
	for _, s := range cfg.System.Signaling.IceServers {
		iceServers = append(iceServers, session.IceServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	minVersions := map[string]string{}
	for _, b := range cfg.System.SupportedClients.Browsers {
		minVersions[string(session.ClientBrowser)+"/"+b.Name] = b.MinVersion
	}
	for _, m := range cfg.System.SupportedClients.Mobile {
		minVersions[string(session.ClientMobile)+"/"+m.Name] = m.MinVersion
	}
	metricsRegistry := metrics.New()

	signalSvc := signalling.New(logger, resources, validator, cfg.System.Token.Audience,
		minVersions, iceServers, cfg.System.Signaling.DefaultBitrateKbps, metricsRegistry)

	asrClient, closeAsr, err := buildAsrClient(cfg, logger)
	if err != nil {
		logger.Errorw("failed to build asr client", "error", err)
		return 1
	}
	if closeAsr != nil {
		defer closeAsr()
	}
	asrManager := asr.New(logger, asrClient)

	pipelineCfg := pipeline.Config{
		InputSampleRateHz:  cfg.Audio.Input.SampleRateHz,
		InputChannels:      cfg.Audio.Input.Channels,
		TargetSampleRateHz: cfg.Audio.Target.SampleRateHz,
		TargetFrameSamples: cfg.Audio.TargetFrameSamples(),
		TargetRMSDb:        cfg.Audio.Normalization.TargetRMSDb,
		LimiterThresholdDb: cfg.Audio.Normalization.LimiterThresholdDb,
	}

	ingestor := httpio.NewIngestor(logger, asrManager, pipelineCfg)

	finalizeSilence := time.Duration(cfg.Asr.Streaming.FinalizationSilenceMs) * time.Millisecond
	streamers := make(map[string]*webrtcio.Streamer)
	var streamersMu sync.Mutex

	wsHandler := wsio.NewHandler(logger, signalSvc,
		func(sessionID string, conn *wsio.Conn, sdpOffer string) {
			pcICEServers := make([]webrtc.ICEServer, 0, len(cfg.System.Signaling.IceServers))
			for _, s := range cfg.System.Signaling.IceServers {
				pcICEServers = append(pcICEServers, webrtc.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
			}
			streamer, err := webrtcio.NewStreamer(logger, pcICEServers)
			if err != nil {
				conn.SendError(sessionID, mustGatewayErr(err))
				return
			}
			answer, err := streamer.SetRemoteOffer(sdpOffer)
			if err != nil {
				streamer.Close()
				conn.SendError(sessionID, mustGatewayErr(err))
				return
			}
			streamersMu.Lock()
			streamers[sessionID] = streamer
			streamersMu.Unlock()

			if err := conn.SendAnswer(sessionID, answer); err != nil {
				logger.Warnw("failed to send answer", "session_id", sessionID, "error", err)
			}

			p := pipeline.New(pipelineCfg)
			orch := orchestrator.New(logger, sessionID, asrManager, p, conn, finalizeSilence, metricsRegistry)
			go orch.Run(orchestrator.AudioReceiver(streamer.Samples()))
		},
		func(sessionID, candidate string) {
			streamersMu.Lock()
			streamer, ok := streamers[sessionID]
			streamersMu.Unlock()
			if ok {
				if err := streamer.AddICECandidate(candidate); err != nil {
					logger.Warnw("failed to add ice candidate", "session_id", sessionID, "error", err)
				}
			}
		},
	)

	// HTTP ingest + SSE + health/metrics share one gin engine on the
	// configured metrics listen address; WS signalling gets its own
	// listener on :8081/ws, matching spec.md §6's concrete bind split
	// (SPEC_FULL.md §6).
	httpEngine := gin.New()
	httpEngine.Use(gin.Recovery())
	httpEngine.Use(cors.Default())
	httpEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	httpEngine.GET("/readiness", func(c *gin.Context) { c.Status(http.StatusOK) })
	httpio.RegisterRoutes(httpEngine, ingestor)
	metrics.RegisterRoute(httpEngine, cfg.Monitoring.Metrics.ScrapePath, metricsRegistry)

	listenAddr := cfg.Monitoring.Metrics.Listen
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	httpServer := &http.Server{Addr: listenAddr, Handler: httpEngine}

	wsEngine := gin.New()
	wsEngine.Use(gin.Recovery())
	wsEngine.GET("/ws", wsHandler.ServeHTTP)
	wsServer := &http.Server{Addr: ":8081", Handler: wsEngine}

	serverErr := make(chan error, 2)
	go func() {
		logger.Infow("http gateway listening", "addr", listenAddr)
		serverErr <- httpServer.ListenAndServe()
	}()
	go func() {
		logger.Infow("ws signalling listening", "addr", wsServer.Addr)
		serverErr <- wsServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorw("server exited unexpectedly", "error", err)
			return 1
		}
	case <-stop:
		logger.Infow("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Errorw("graceful shutdown failed", "error", err)
			return 1
		}
		if err := wsServer.Shutdown(ctx); err != nil {
			logger.Errorw("graceful shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

func buildValidator(cfg *config.Config) token.Validator {
	if cfg.System.Token.JWKSUrl == "" {
		return token.NoopValidator{}
	}
	return token.NewJWTValidator(cfg.System.Token.Issuer, nil)
}

// buildAsrClient wires either the mock client (no endpoint configured)
// or a real gRPC Adapter dialed against cfg.Asr.Service.Endpoint.
func buildAsrClient(cfg *config.Config, logger logging.Logger) (asr.StreamingClient, func(), error) {
	if cfg.Asr.Service.Endpoint == "" || cfg.Asr.Service.Endpoint == "mock" {
		return asr.NewMockClient(cfg.Asr.Streaming.MaxPendingRequests), nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Asr.Service.RequestTimeoutMs)*time.Millisecond)
	defer cancel()
	conn, err := rpc.Dial(ctx, cfg.Asr.Service.Endpoint, grpc.WithBlock())
	if err != nil {
		return nil, nil, err
	}
	adapter := rpc.NewAdapter(conn, cfg.Asr.Model.Language, int32(cfg.Audio.Target.SampleRateHz), int32(cfg.Audio.Target.Channels))
	return adapter, func() { conn.Close() }, nil
}
