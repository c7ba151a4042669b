package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"gymbody/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const grpcMaxMessageBytes = 4 << 20

// GRPCServer exposes the partner schedule API on its own TCP port.
type GRPCServer struct {
	srv *grpc.Server
	lis net.Listener
	log zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	gs := &GRPCServer{
		srv: newGRPCServer(cfg, svc, logger),
		lis: lis,
		log: zerolog.Nop(),
	}
	if logger != nil {
		gs.log = logger.With().Str("component", "grpc").Logger()
	}
	return gs, nil
}

// newGRPCServer builds the server without a listener so tests can serve it over bufconn.
func newGRPCServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *grpc.Server {
	guard := NewAuthInterceptor(cfg)
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(LoggingUnaryInterceptor(logger), guard.Unary()),
		grpc.MaxRecvMsgSize(grpcMaxMessageBytes),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              2 * time.Minute,
		}),
	}

	s := grpc.NewServer(opts...)
	RegisterScheduleServer(s, NewScheduleService(svc.Catalog, svc.Booking))
	if cfg.GRPC.Reflection {
		reflection.Register(s)
	}
	return s
}

func (g *GRPCServer) Addr() string {
	if g.lis == nil {
		return ""
	}
	return g.lis.Addr().String()
}

// Serve blocks until the server stops.
func (g *GRPCServer) Serve() error {
	g.log.Info().Str("addr", g.Addr()).Msg("gRPC API listening")
	return g.srv.Serve(g.lis)
}

// Shutdown drains in-flight calls and falls back to a hard stop once ctx is done.
func (g *GRPCServer) Shutdown(ctx context.Context) {
	if g.srv == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		g.srv.GracefulStop()
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.log.Warn().Err(ctx.Err()).Msg("gRPC drain interrupted, stopping")
		g.srv.Stop()
		<-stopped
	}
}
