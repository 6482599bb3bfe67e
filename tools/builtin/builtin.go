// Package builtin provides the static tools jarvis ships with. Each tool is
// a thin adapter over the filesystem, a child process, the memory store or
// an HTTP API; the planning loop only ever sees them through tools.Registry.
package builtin

import (
	"context"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	loggerv2 "jarvis/logger/v2"
	"jarvis/memory"
	"jarvis/tools"
)

// Categories, mirrored from the intent classifier's table.
const (
	categoryFileOps    = "File Ops"
	categorySystemInfo = "System Info"
	categoryWebSearch  = "Web Search"
	categoryWeather    = "Weather"
	categoryExecution  = "System Info & Execution"
)

// ScriptRunner runs a complete Go main package. tools.Sandbox implements it.
type ScriptRunner interface {
	RunScript(ctx context.Context, source string) (tools.ScriptResult, error)
}

// WebConfig configures browsing and search.
type WebConfig struct {
	SearchAPIKey    string
	SearchEngineID  string
	SearchURL       string
	MaxScrapeLength int
}

// WeatherConfig configures the weather tool.
type WeatherConfig struct {
	APIKey string
	URL    string
	GeoURL string
}

// Deps are the collaborators the static tools need. Tools whose
// dependency is missing are not registered.
type Deps struct {
	Memory  memory.Store
	Dynamic *tools.DynamicManager
	Scripts ScriptRunner
	HTTP    *resty.Client
	Web     WebConfig
	Weather WeatherConfig
	// HomeDir resolves "Desktop" and "Documents" for create_document.
	HomeDir string
	// ScriptTimeout bounds tools that compile and run generated code.
	ScriptTimeout time.Duration
	Logger        loggerv2.Logger
}

const (
	defaultSearchURL       = "https://www.googleapis.com/customsearch/v1"
	defaultWeatherURL      = "http://api.weatherapi.com/v1/current.json"
	defaultGeoURL          = "http://ip-api.com/json/"
	defaultMaxScrapeLength = 4000
	httpTimeout            = 15 * time.Second
	userAgent              = "Mozilla/5.0 (compatible; jarvis/1.0)"
)

func (d *Deps) setDefaults() {
	if d.Logger == nil {
		d.Logger = loggerv2.NewNoop()
	}
	if d.HTTP == nil {
		d.HTTP = resty.New().
			SetTimeout(httpTimeout).
			SetHeader("User-Agent", userAgent)
	}
	if d.Web.SearchURL == "" {
		d.Web.SearchURL = defaultSearchURL
	}
	if d.Web.MaxScrapeLength <= 0 {
		d.Web.MaxScrapeLength = defaultMaxScrapeLength
	}
	if d.Weather.URL == "" {
		d.Weather.URL = defaultWeatherURL
	}
	if d.Weather.GeoURL == "" {
		d.Weather.GeoURL = defaultGeoURL
	}
	if d.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			d.HomeDir = home
		}
	}
}

// Definitions returns every static tool the deps can support.
func Definitions(deps Deps) []tools.Definition {
	deps.setDefaults()

	defs := fileTools(deps)
	defs = append(defs, systemTools(deps)...)
	if deps.Memory != nil {
		defs = append(defs, memoryTools(deps)...)
	}
	defs = append(defs, shellTool(deps))
	if deps.Dynamic != nil {
		defs = append(defs, createToolTool(deps))
	}
	if deps.Scripts != nil {
		defs = append(defs, scriptTool(deps))
	}
	defs = append(defs, webTools(deps)...)
	defs = append(defs, weatherTool(deps))
	return defs
}

// RegisterAll registers the static tools into reg.
func RegisterAll(reg *tools.Registry, deps Deps) error {
	for _, def := range Definitions(deps) {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
