package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/migration"
	"github.com/smallbiznis/partnersync/internal/observability"
	"github.com/smallbiznis/partnersync/internal/scheduler"
	"github.com/smallbiznis/partnersync/internal/server"
	"github.com/smallbiznis/partnersync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Webhook receiver, operator API and every domain service
		server.Module,

		// In-process batch loop, sharing the runner with POST /internal/events/process
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
