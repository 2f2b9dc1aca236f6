package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/dreamland-studio/dreamland/internal/auth/domain"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/oauth2provider"
)

// Module applies the schema at startup. Postgres runs the versioned SQL
// migrations; other dialects (local sqlite development) auto-migrate from
// the models.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.UserProvider{},
				&authdomain.Session{},
				&oauth2provider.Client{},
				&oauth2provider.AuthorizationCode{},
				&oauth2provider.AccessToken{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
