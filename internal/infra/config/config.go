// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Arimodu/wipbot/internal/app/archive"
	"github.com/Arimodu/wipbot/internal/app/command"
	"github.com/Arimodu/wipbot/internal/domain/request"
)

// Config represents the application configuration.
type Config struct {
	ConfigVersion int            `yaml:"config_version"`
	Server        ServerConfig   `yaml:"server"`
	Chat          ChatConfig     `yaml:"chat"`
	Request       RequestConfig  `yaml:"request"`
	Archive       ArchiveConfig  `yaml:"archive"`
	Download      DownloadConfig `yaml:"download"`
	Library       LibraryConfig  `yaml:"library"`
	Messages      MessagesConfig `yaml:"messages"`
}

// ServerConfig represents the admin HTTP server configuration.
type ServerConfig struct {
	Addr       string      `yaml:"addr" default:":8080"`
	AdminToken string      `yaml:"admin_token" validate:"required"`
	Hooks      HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ChatConfig selects and configures the chat backend.
type ChatConfig struct {
	Backend  string         `yaml:"backend" default:"console"`
	Settings map[string]any `yaml:"settings"`
}

// RequestConfig represents chat-command and queue configuration.
type RequestConfig struct {
	Command       string               `yaml:"command" default:"!wip"`
	UndoKeyword   string               `yaml:"undo_keyword" default:"oops"`
	QueueSize     int                  `yaml:"queue_size" default:"9" validate:"gte=1"`
	Quotas        QuotasConfig         `yaml:"quotas"`
	CodeAlphabet  string               `yaml:"code_alphabet" default:"0123456789abcdefABCDEF"`
	BlockSentinel string               `yaml:"block_sentinel" default:"***"`
	URLWhitelist  []string             `yaml:"url_whitelist"`
	URLRewrites   []RewriteConfig      `yaml:"url_rewrites"`
	CodeTemplates []CodeTemplateConfig `yaml:"code_templates"`
}

// SetDefaults fills the pair lists; struct-slice defaults do not fit tags.
func (r *RequestConfig) SetDefaults() {
	if len(r.URLWhitelist) == 0 {
		r.URLWhitelist = []string{
			"https://cdn.discordapp.com/",
			"https://drive.google.com/file/d/",
		}
	}
	if len(r.URLRewrites) == 0 {
		r.URLRewrites = []RewriteConfig{
			{Find: "https://drive.google.com/file/d/", Replace: "https://drive.google.com/uc?id="},
			{Find: "/view?usp=sharing", Replace: "&export=download&confirm=t"},
			{Find: "/view?usp=drive_link", Replace: "&export=download&confirm=t"},
		}
	}
	if len(r.CodeTemplates) == 0 {
		r.CodeTemplates = []CodeTemplateConfig{
			{Prefix: "0", URL: "https://wipbot.com/wips/%s.zip"},
		}
	}
}

// QuotasConfig represents per-role request limits. The fields are pointers so
// an explicit zero (role may not request at all) survives default filling.
type QuotasConfig struct {
	User       *int `yaml:"user" default:"2" validate:"omitempty,gte=0"`
	Subscriber *int `yaml:"subscriber" default:"2" validate:"omitempty,gte=0"`
	Vip        *int `yaml:"vip" default:"2" validate:"omitempty,gte=0"`
	Moderator  *int `yaml:"moderator" default:"2" validate:"omitempty,gte=0"`
}

// RewriteConfig is one ordered find/replace pair applied to resolved URLs.
type RewriteConfig struct {
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
}

// CodeTemplateConfig maps a request-code prefix to a URL template.
type CodeTemplateConfig struct {
	Prefix string `yaml:"prefix"`
	URL    string `yaml:"url"`
}

// ArchiveConfig represents archive validation limits.
type ArchiveConfig struct {
	MaxEntries            int      `yaml:"max_entries" default:"100" validate:"gte=1"`
	MaxUncompressedSizeMB int      `yaml:"max_uncompressed_size_mb" default:"100" validate:"gte=1"`
	ExtensionWhitelist    []string `yaml:"extension_whitelist" default:"[\"png\",\"jpg\",\"jpeg\",\"dat\",\"json\",\"ogg\",\"egg\"]"`
}

// DownloadConfig represents download worker configuration.
type DownloadConfig struct {
	Dir            string `yaml:"dir" default:"data/downloads"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"300" validate:"gte=1"`
	UserAgent      string `yaml:"user_agent" default:"wipbot/1.14.0"`
}

// LibraryConfig represents the content library configuration.
type LibraryConfig struct {
	Dir         string   `yaml:"dir" default:"data/wips"`
	OnExtracted []string `yaml:"on_extracted"`
	OnReindex   []string `yaml:"on_reindex"`
}

// MessagesConfig represents user-facing chat messages, keyed by outcome
// code. %s and %i placeholders are interpolated with outcome details.
type MessagesConfig struct {
	Help               string `yaml:"help" default:"! To request a WIP, go to https://wipbot.com or upload the .zip anywhere on discord or on google drive, copy the download link and use the command !wip (link)"`
	WipRequested       string `yaml:"wip_requested" default:"! WIP requested"`
	UndoRequest        string `yaml:"undo_request" default:"! Removed your latest request from wip queue"`
	DownloadStarted    string `yaml:"download_started" default:"! WIP download started"`
	DownloadSuccess    string `yaml:"download_success" default:"! WIP download successful"`
	DownloadCancelled  string `yaml:"download_cancelled" default:"! WIP download cancelled"`
	DownloadFailed     string `yaml:"download_failed" default:"! Error: WIP download failed"`
	NoPermission       string `yaml:"no_permission" default:"! Error: You don't have permission to use the wip command"`
	UserMaxRequests    string `yaml:"user_max_requests" default:"! Error: You already have the maximum number of wip requests in queue"`
	QueueFull          string `yaml:"queue_full" default:"! Error: The wip request queue is full"`
	LinkBlocked        string `yaml:"link_blocked" default:"! Error: Your link was blocked by the channel's chat moderation settings"`
	TooManyEntries     string `yaml:"too_many_entries" default:"! Error: Zip contains more than %i entries"`
	TooLarge           string `yaml:"too_large" default:"! Error: Zip uncompressed length >%i MB"`
	MissingInfoDat     string `yaml:"missing_info_dat" default:"! Error: WIP missing info.dat"`
	ContainsSubfolders string `yaml:"contains_subfolders" default:"! Error: Zip contains subfolders, not extracting"`
	BadExtension       string `yaml:"bad_extension" default:"! Skipped %i files during extraction due to bad file extension"`
	ExtractionFailed   string `yaml:"extraction_failed" default:"! Error: Zip extraction failed"`
	Other              string `yaml:"other" default:"! Error: %s"`
}

// Load loads configuration from a YAML file, overrides sensitive fields from
// the environment, fills defaults, applies pending migrations, and
// validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	cfg.Migrate()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Save writes the configuration back to disk, preserving the advanced
// config version after migrations.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("TWITCH_OAUTH_TOKEN"); v != "" && c.Chat.Backend == "twitch" {
		if c.Chat.Settings == nil {
			c.Chat.Settings = map[string]any{}
		}
		c.Chat.Settings["oauth_token"] = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// GetMessage returns the message template for the given outcome code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "wip_requested":
		return c.Messages.WipRequested
	case "undo_request":
		return c.Messages.UndoRequest
	case "download_started":
		return c.Messages.DownloadStarted
	case "download_success":
		return c.Messages.DownloadSuccess
	case "download_cancelled":
		return c.Messages.DownloadCancelled
	case "download_failed":
		return c.Messages.DownloadFailed
	case "no_permission":
		return c.Messages.NoPermission
	case "user_max_requests":
		return c.Messages.UserMaxRequests
	case "queue_full":
		return c.Messages.QueueFull
	case "link_blocked":
		return c.Messages.LinkBlocked
	case "invalid_request":
		// The help text doubles as the invalid-request reply.
		return c.Messages.Help
	case "too_many_entries":
		return c.Messages.TooManyEntries
	case "too_large":
		return c.Messages.TooLarge
	case "missing_info_dat":
		return c.Messages.MissingInfoDat
	case "contains_subfolders":
		return c.Messages.ContainsSubfolders
	case "bad_extension":
		return c.Messages.BadExtension
	case "extraction_failed":
		return c.Messages.ExtractionFailed
	default:
		return c.Messages.Other
	}
}

// Interpolate substitutes a detail value into a message template's %s and %i
// placeholders.
func Interpolate(template, value string) string {
	if value == "" {
		return template
	}
	template = strings.ReplaceAll(template, "%s", value)
	return strings.ReplaceAll(template, "%i", value)
}

// Quotas converts the config block to the domain quotas. Unset fields count
// as zero.
func (q QuotasConfig) Quotas() request.Quotas {
	deref := func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	}
	return request.Quotas{
		User:       deref(q.User),
		Subscriber: deref(q.Subscriber),
		Vip:        deref(q.Vip),
		Moderator:  deref(q.Moderator),
	}
}

// Limits converts the archive block to validation limits.
func (a ArchiveConfig) Limits() archive.Limits {
	return archive.Limits{
		MaxEntries:           a.MaxEntries,
		MaxUncompressedBytes: uint64(a.MaxUncompressedSizeMB) * 1_000_000,
		ExtensionWhitelist:   a.ExtensionWhitelist,
	}
}

// Timeout returns the download timeout as a duration.
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// CommandConfig builds the interpreter's configuration snapshot.
func (c *Config) CommandConfig() command.Config {
	rewrites := make([]command.Rewrite, len(c.Request.URLRewrites))
	for i, rw := range c.Request.URLRewrites {
		rewrites[i] = command.Rewrite{Find: rw.Find, Replace: rw.Replace}
	}
	templates := make([]command.CodeTemplate, len(c.Request.CodeTemplates))
	for i, ct := range c.Request.CodeTemplates {
		templates[i] = command.CodeTemplate{Prefix: ct.Prefix, URL: ct.URL}
	}
	return command.Config{
		Command:       c.Request.Command,
		UndoKeyword:   c.Request.UndoKeyword,
		QueueSize:     c.Request.QueueSize,
		Quotas:        c.Request.Quotas.Quotas(),
		CodeAlphabet:  c.Request.CodeAlphabet,
		BlockSentinel: c.Request.BlockSentinel,
		URLWhitelist:  c.Request.URLWhitelist,
		URLRewrites:   rewrites,
		CodeTemplates: templates,
	}
}
