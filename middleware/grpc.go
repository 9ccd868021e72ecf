package middleware

import (
	"context"

	"github.com/MrEthical07/tokengate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	errUnauthenticated  = status.Error(codes.Unauthenticated, "unauthorized")
	errPermissionDenied = status.Error(codes.PermissionDenied, "forbidden")
)

// UnaryServerInterceptor applies the same decision as [Gate] to unary RPCs.
// table is matched against the full method name; the bearer token is read
// from the "authorization" metadata key.
func UnaryServerInterceptor(validator tokengate.TokenValidator, table *RouteTable, opts ...Option) grpc.UnaryServerInterceptor {
	o := buildOptions(opts)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		authCtx, err := o.admit(ctx, validator, table, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor applies the same decision as [Gate] to streaming RPCs.
func StreamServerInterceptor(validator tokengate.TokenValidator, table *RouteTable, opts ...Option) grpc.StreamServerInterceptor {
	o := buildOptions(opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		authCtx, err := o.admit(ss.Context(), validator, table, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: authCtx})
	}
}

func (o options) admit(ctx context.Context, validator tokengate.TokenValidator, table *RouteTable, fullMethod string) (context.Context, error) {
	route, _ := table.Match("", fullMethod)
	if route.Public {
		return ctx, nil
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
	}

	principal, err := authenticate(ctx, validator, header)
	if err != nil {
		o.reject(ctx, err, "method", fullMethod)
		return nil, errUnauthenticated
	}
	if route.Authority != "" && !principal.HasAuthority(route.Authority) {
		o.forbid(ctx, principal.Subject, route.Authority)
		return nil, errPermissionDenied
	}
	return tokengate.WithPrincipal(ctx, principal), nil
}

// wrappedServerStream wraps a grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
