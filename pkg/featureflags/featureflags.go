package featureflags

import (
	"context"

	"marketplace-ledger/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// Flag names evaluated per provider.
const (
	ExactReservation = "exact_reservation"
)

type FeatureFlag interface {
	// Enabled evaluates feature for the identity and returns fallback when
	// flags are not configured or the lookup fails.
	Enabled(ctx context.Context, identifier, feature string, fallback bool) bool
}

type featureflag struct {
	client *flagsmith.Client
	// concurrent lookups for one identity share a single request
	group singleflight.Group
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, identifier, feature string, fallback bool) bool {
	if s.client == nil {
		return fallback
	}

	v, err, _ := s.group.Do(identifier, func() (any, error) {
		return s.client.GetIdentityFlags(identifier, nil)
	})
	if err != nil {
		zap.L().Warn("failed to fetch identity flags", zap.String("identifier", identifier), zap.Error(err))
		return fallback
	}

	flags := v.(flagsmith.Flags)
	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return fallback
	}
	return enabled
}

// Static always answers with the configured fallback. Used by tests and
// deployments without Flagsmith.
type Static map[string]bool

func (s Static) Enabled(_ context.Context, _ string, feature string, fallback bool) bool {
	if v, ok := s[feature]; ok {
		return v
	}
	return fallback
}
