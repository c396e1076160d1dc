package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/entitlements/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Load reads the catalog from a YAML file under the top-level "catalog" key.
// With an empty path it searches /etc/entitlements and the working directory
// for catalog.yml and falls back to the built-in definition when none exists.
// An explicit path that cannot be read is an error.
func Load(path string) (*Catalog, error) {
	v := viper.New()

	path = strings.TrimSpace(path)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/entitlements")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var def Definition
	if err := v.UnmarshalKey("catalog", &def); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(def)
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func Provide(p Params) (*Catalog, error) {
	c, err := Load(p.Config.CatalogFile)
	if err != nil {
		return nil, err
	}
	p.Log.Named("catalog").Info("catalog loaded",
		zap.String("version", c.Version()),
		zap.Int("plans", len(c.plans)),
		zap.Int("features", len(c.features)),
		zap.Int("limits", len(c.limits)),
	)
	return c, nil
}

var Module = fx.Module("catalog", fx.Provide(Provide))
