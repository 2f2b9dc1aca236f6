package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/dreamland-studio/dreamland/internal/auth"
	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/migration"
	"github.com/dreamland-studio/dreamland/internal/oauth2provider"
	"github.com/dreamland-studio/dreamland/internal/observability"
	"github.com/dreamland-studio/dreamland/internal/providers/email"
	"github.com/dreamland-studio/dreamland/internal/server"
	"github.com/dreamland-studio/dreamland/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,

		// Functional domains
		email.Module,
		auth.Module,
		oauth2provider.Module,

		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator. SNOWFLAKE_NODE_ID distinguishes
// replicas; a single instance can leave it unset.
func RegisterSnowflake() *snowflake.Node {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	return node
}
