package config

import (
	"slices"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// migrations are applied in order from the stored config version; entry i
// migrates version i to i+1. Keep the list append-only.
var migrations = []func(*Config){
	// 0 -> 1: allow vivify assets in WIP archives
	func(c *Config) {
		if !slices.Contains(c.Archive.ExtensionWhitelist, "vivify") {
			c.Archive.ExtensionWhitelist = append(c.Archive.ExtensionWhitelist, "vivify")
		}
	},

	// 1 -> 2: catse.net moved to wipbot.com
	func(c *Config) {
		for i, ct := range c.Request.CodeTemplates {
			if ct.URL == "http://catse.net/wips/%s.zip" {
				c.Request.CodeTemplates[i].URL = "https://wipbot.com/wips/%s.zip"
			}
		}
		c.Messages.Help = strings.ReplaceAll(c.Messages.Help, "http://catse.net/wip", "https://wipbot.com")
	},
}

// Migrate applies pending migrations from the stored version to the latest.
// Migrations are best-effort: a failing migration is logged and skipped, and
// the version still advances so later migrations are not blocked. Returns
// the number of migrations attempted.
func (c *Config) Migrate() int {
	start := c.ConfigVersion
	if start >= len(migrations) {
		return 0
	}

	for i := start; i < len(migrations); i++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error().Msgf("failed to apply config migration %d: %v", i, r)
				}
				c.ConfigVersion = i + 1
			}()
			migrations[i](c)
		}()
	}
	return len(migrations) - start
}
