package api

import (
	"context"
	"strings"
	"time"

	"gymbody/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// LoggingUnaryInterceptor tags every call with a request id, echoes it in the
// response header and records one log line and one counter sample per call.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, rid))

		began := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.IncGRPC(info.FullMethod, code.String())

		var ev *zerolog.Event
		switch code {
		case codes.OK:
			ev = log.Info()
		case codes.Internal, codes.Unknown, codes.DataLoss:
			ev = log.Error().Err(err)
		default:
			ev = log.Warn().Str("reason", status.Convert(err).Message())
		}
		ev.Str("request_id", rid).
			Str("method", info.FullMethod).
			Str("peer", remoteAddr(ctx)).
			Stringer("code", code).
			Dur("took", time.Since(began)).
			Msg("grpc call")
		return resp, err
	}
}

// requestIDFromMetadata reuses the caller's x-request-id or mints a new one.
func requestIDFromMetadata(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(requestIDMetadataKey) {
		if id := strings.TrimSpace(v); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
