package configflags

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	v1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
)

// ConfigFlags holds the location of the funnels file.
type ConfigFlags struct {
	Path string
}

func NewConfigFlags() *ConfigFlags {
	return &ConfigFlags{}
}

func (f *ConfigFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.Path,
		"funnels",
		"f",
		f.Path,
		"YAML or JSON file with the details about the funnels to be analyzed")
}

func (f *ConfigFlags) Validate() error {
	if f.Path == "" {
		return errors.New("--funnels is required")
	}
	return nil
}

// GetConfig loads and validates the funnels file. JSON documents are valid YAML
// and load the same way.
func (f *ConfigFlags) GetConfig() (*v1.FunnelsConfig, error) {
	var funnelsConfig v1.FunnelsConfig

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.WithMessage(err, "could not load funnels")
	}
	if err := yaml.Unmarshal(data, &funnelsConfig); err != nil {
		return nil, errors.WithMessage(err, "couldn't unmarshal funnels")
	}
	if err := funnelsConfig.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid funnels file %s", f.Path)
	}

	return &funnelsConfig, nil
}
