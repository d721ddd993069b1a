// Command asr-backend runs a standalone ASR streaming backend server,
// the counterpart spec.md §4.4 expects the gateway to dial as a gRPC
// client — grounded on original_source/asr/server.rs's LocalAsrService.
package main

import (
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr/rpc"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := logging.New(os.Getenv("GATEWAY_ENV") != "production")
	if err != nil {
		return 1
	}
	defer logger.Sync()

	addr := os.Getenv("ASR_BACKEND_LISTEN")
	if addr == "" {
		addr = ":9090"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Errorw("failed to listen", "addr", addr, "error", err)
		return 1
	}

	server := grpc.NewServer()
	rpc.RegisterServer(server, rpc.NewLocalService(logger, rpc.DefaultRecognizer{}))

	logger.Infow("asr backend listening", "addr", addr)
	if err := server.Serve(listener); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
