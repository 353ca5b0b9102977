// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The config package loads the dispatcher configuration: where projects
// live, which languages exist and how to start their servers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pulumi/lsp-dispatch/sdk/language"
	"github.com/pulumi/lsp-dispatch/sdk/server"
)

const appName = "lsp-dispatch"

type Config struct {
	Workspace Workspace  `mapstructure:"workspace"`
	Timeouts  Timeouts   `mapstructure:"timeouts"`
	HTTP      HTTP       `mapstructure:"http"`
	Log       Log        `mapstructure:"log"`
	Languages []Language `mapstructure:"languages"`
	Servers   []Server   `mapstructure:"servers"`
}

type Workspace struct {
	Root string `mapstructure:"root"`
	// Prepended to the relative URIs of REST clients.
	URIPrefix string `mapstructure:"uriPrefix"`
	// Treat every directory directly below Root as a project.
	Discover bool     `mapstructure:"discover"`
	Projects []string `mapstructure:"projects"`
}

type Timeouts struct {
	Initialize      time.Duration `mapstructure:"initialize"`
	Request         time.Duration `mapstructure:"request"`
	WorkspaceSymbol time.Duration `mapstructure:"workspaceSymbol"`
	Shutdown        time.Duration `mapstructure:"shutdown"`
}

type HTTP struct {
	Address string `mapstructure:"address"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Language struct {
	ID           string   `mapstructure:"id"`
	Extensions   []string `mapstructure:"extensions"`
	FileNames    []string `mapstructure:"fileNames"`
	MimeTypes    []string `mapstructure:"mimeTypes"`
	Highlighting string   `mapstructure:"highlighting"`
}

type Server struct {
	ID string `mapstructure:"id"`
	// A shell quoted command line.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	// KEY=VALUE pairs. Maps would have their keys lowercased.
	Env         []string `mapstructure:"env"`
	Dir         string   `mapstructure:"dir"`
	LanguageIDs []string `mapstructure:"languageIds"`
	Filters     []Filter `mapstructure:"filters"`
}

type Filter struct {
	LanguageID string `mapstructure:"languageId"`
	Pattern    string `mapstructure:"pattern"`
	Scheme     string `mapstructure:"scheme"`
}

// New returns a viper instance with every default set and the environment
// bound, e.g. LSP_DISPATCH_HTTP_ADDRESS for http.address.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("workspace.root", "/projects")
	v.SetDefault("workspace.uriPrefix", "file:///projects")
	v.SetDefault("workspace.discover", true)
	v.SetDefault("workspace.projects", []string{})
	v.SetDefault("timeouts.initialize", 10*time.Second)
	v.SetDefault("timeouts.request", 5*time.Second)
	v.SetDefault("timeouts.workspaceSymbol", 50*time.Second)
	v.SetDefault("timeouts.shutdown", 5*time.Second)
	v.SetDefault("http.address", ":4040")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(appName), "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or searches the usual places when file is empty. A
// missing configuration file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + appName)
		v.AddConfigPath("/etc/" + appName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first problem that would stop the dispatcher from
// starting.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return errors.New("workspace.root must be set")
	}
	languages := map[string]struct{}{}
	for i, l := range c.Languages {
		if l.ID == "" {
			return fmt.Errorf("languages[%d]: missing id", i)
		}
		if _, ok := languages[l.ID]; ok {
			return fmt.Errorf("languages[%d]: duplicate language %q", i, l.ID)
		}
		languages[l.ID] = struct{}{}
	}
	servers := map[string]struct{}{}
	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("servers[%d]: missing id", i)
		}
		if _, ok := servers[s.ID]; ok {
			return fmt.Errorf("servers[%d]: duplicate server %q", i, s.ID)
		}
		servers[s.ID] = struct{}{}
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("server %s: missing command", s.ID)
		}
		for _, kv := range s.Env {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				return fmt.Errorf("server %s: env entry %q is not KEY=VALUE", s.ID, kv)
			}
		}
		for j, f := range s.Filters {
			if f == (Filter{}) {
				return fmt.Errorf("server %s: filters[%d] is empty", s.ID, j)
			}
		}
		if err := s.Description().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (l Language) Description() language.Description {
	return language.Description{
		ID:           l.ID,
		Extensions:   l.Extensions,
		FileNames:    l.FileNames,
		MimeTypes:    l.MimeTypes,
		Highlighting: l.Highlighting,
	}
}

// Environment returns Env as a map.
func (s Server) Environment() map[string]string {
	env := make(map[string]string, len(s.Env))
	for _, kv := range s.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func (s Server) Description() *server.Description {
	d := &server.Description{ID: s.ID, LanguageIDs: s.LanguageIDs}
	for _, f := range s.Filters {
		d.Filters = append(d.Filters, server.DocumentFilter{
			LanguageID: f.LanguageID,
			Pattern:    f.Pattern,
			Scheme:     f.Scheme,
		})
	}
	return d
}
