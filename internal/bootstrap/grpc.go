package bootstrap

import (
	"context"
	"log/slog"
	"net"

	"github.com/heyito/ito-sub003/internal/transcription"
	"github.com/heyito/ito-sub003/internal/transcription/transcribepb"
	"go.uber.org/fx"
	"google.golang.org/grpc"
)

const maxRecvMsgSize = 64 * 1024 * 1024

func NewGRPCServer() *grpc.Server {
	return grpc.NewServer(grpc.MaxRecvMsgSize(maxRecvMsgSize))
}

func RegisterTranscribeService(server *grpc.Server, svc *transcription.Service) {
	transcribepb.RegisterTranscribeServiceServer(server, svc)
}

func StartGRPCServer(lc fx.Lifecycle, server *grpc.Server, cfg *Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return err
			}
			go func() {
				logger.Info("gRPC server starting", "addr", cfg.GRPCAddr)
				if err := server.Serve(lis); err != nil {
					logger.Error("gRPC server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			server.GracefulStop()
			return nil
		},
	})
}

var GRPCModule = fx.Options(
	fx.Provide(NewGRPCServer),
	fx.Invoke(RegisterTranscribeService),
	fx.Invoke(StartGRPCServer),
)
