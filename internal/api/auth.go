package api

import (
	"context"
	"strings"

	"gymbody/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault  = "x-api-key"
	permReadSchedule     = "read:schedule"
	permReadAvailability = "read:availability"
	clientKeyUnknown     = "unknown"
)

var methodPermissions = map[string]string{
	methodListSessions:    permReadSchedule,
	methodGetAvailability: permReadAvailability,
}

func requiredPermission(fullMethod string) string {
	return methodPermissions[fullMethod]
}

// partner is a configured API key with its granted permissions. A nil grant
// set means the key may call every method.
type partner struct {
	name   string
	grants map[string]struct{}
}

func (p partner) may(perm string) bool {
	if perm == "" || p.grants == nil {
		return true
	}
	_, ok := p.grants[perm]
	return ok
}

// AuthInterceptor checks partner API keys and applies the per-key rate limit.
type AuthInterceptor struct {
	enabled  bool
	header   string
	partners map[string]partner
	limiter  *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	header := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = apiKeyHeaderDefault
	}

	partners := make(map[string]partner, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		p := partner{name: k.Name}
		if len(k.Permissions) > 0 {
			p.grants = make(map[string]struct{}, len(k.Permissions))
			for _, perm := range k.Permissions {
				p.grants[strings.TrimSpace(perm)] = struct{}{}
			}
		}
		partners[k.Key] = p
	}

	return &AuthInterceptor{
		enabled:  cfg.Auth.Enabled,
		header:   header,
		partners: partners,
		limiter:  newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := a.presentedKey(ctx)
		if a.enabled {
			if err := a.authorize(ctx, key, info.FullMethod); err != nil {
				return nil, err
			}
		}

		bucket := key
		if bucket == "" {
			bucket = remoteAddr(ctx)
		}
		if !a.limiter.Allow(bucket) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) presentedKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(a.header)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func (a *AuthInterceptor) authorize(ctx context.Context, key, fullMethod string) error {
	if _, ok := metadata.FromIncomingContext(ctx); !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	if key == "" {
		return status.Error(codes.Unauthenticated, "missing api key header")
	}
	p, ok := a.partners[key]
	if !ok {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	if !p.may(requiredPermission(fullMethod)) {
		return status.Errorf(codes.PermissionDenied, "key %q may not call %s", p.name, fullMethod)
	}
	return nil
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}
