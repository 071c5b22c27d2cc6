package server

import (
	"context"

	apperrors "github.com/louisbranch/custody.space/internal/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// statusInterceptor converts domain errors into gRPC statuses with localized
// user-facing messages before they leave the daemon.
func statusInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return resp, apperrors.HandleError(err, localeFromContext(ctx))
	}
	return resp, nil
}

func localeFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get("accept-language"); len(values) > 0 {
		return values[0]
	}
	return ""
}
