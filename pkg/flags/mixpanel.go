package flags

import (
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/apis/cache"
	"github.com/mixbaba/mixbaba/pkg/mixpanel"
)

// MixpanelFlags holds the credentials and endpoint of the Mixpanel project.
type MixpanelFlags struct {
	APISecret string
	Endpoint  string
	RateLimit time.Duration
}

func NewMixpanelFlags() *MixpanelFlags {
	return &MixpanelFlags{
		Endpoint: mixpanel.DefaultEndpoint,
	}
}

func (f *MixpanelFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.APISecret,
		"key",
		"k",
		os.Getenv("MIXPANEL_API_SECRET"),
		"The API secret to authenticate with Mixpanel, defaults to $MIXPANEL_API_SECRET")
	fs.StringVar(&f.Endpoint, "mixpanel-endpoint", f.Endpoint, "Base URL of the Mixpanel query API")
	fs.DurationVar(&f.RateLimit, "rate-limit", f.RateLimit,
		"Minimum interval between Mixpanel requests, backing off on errors; 0 disables limiting")
}

func (f *MixpanelFlags) Validate() error {
	if f.APISecret == "" {
		return errors.New("a Mixpanel API secret is required, set --key or MIXPANEL_API_SECRET")
	}
	if _, err := url.ParseRequestURI(f.Endpoint); err != nil {
		return errors.WithMessage(err, "Mixpanel endpoint must be valid")
	}
	if f.RateLimit < 0 {
		return errors.New("--rate-limit must not be negative")
	}
	return nil
}

// GetClient builds the client, caching responses when cc is not nil. Callers
// must Close it.
func (f *MixpanelFlags) GetClient(cc cache.Cache, ttl time.Duration) *mixpanel.Client {
	opts := []mixpanel.Option{
		mixpanel.WithEndpoint(f.Endpoint),
		mixpanel.WithRateLimit(f.RateLimit),
	}
	if cc != nil {
		opts = append(opts, mixpanel.WithCache(cc, ttl))
	}
	return mixpanel.New(f.APISecret, opts...)
}
