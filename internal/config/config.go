package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentsea/agentd/internal/recording"
)

type Config struct {
	Server struct {
		Port      string
		LogLevel  string
		LogFormat string
	}
	GRPC struct {
		Addr string
	}
	Recording struct {
		Dir                 string
		MaxActiveSessions   int
		MaxEventsPerSession int
		ArchiveOnStop       bool
		ContextKinds        []recording.Kind
	}
	Screenshot struct {
		Dir     string
		Command string
	}
	Desktop struct {
		Display string
		Xdotool string
	}
	Browser struct {
		Command string
	}
	Stream struct {
		Buffer int
	}
	ShutdownTimeout time.Duration
}

// Load reads defaults and the environment.
func Load() (Config, error) {
	return LoadFlags(nil)
}

// LoadFlags is Load with command-line flags layered on top. Only flags the
// caller actually set override the environment.
func LoadFlags(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("grpc.addr", ":9090")

	v.SetDefault("recording.dir", ".recordings")
	v.SetDefault("recording.max_active_sessions", 16)
	v.SetDefault("recording.max_events_per_session", 10000)
	v.SetDefault("recording.archive_on_stop", false)
	v.SetDefault("recording.context_kinds", "screenshot,error")

	v.SetDefault("screenshot.dir", "screenshots")
	v.SetDefault("screenshot.command", "scrot")

	v.SetDefault("desktop.display", ":1.0")
	v.SetDefault("desktop.xdotool", "xdotool")

	v.SetDefault("browser.command", "chromium")

	v.SetDefault("stream.buffer", 64)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")
	v.BindEnv("server.shutdown_timeout", "SHUTDOWN_TIMEOUT")

	v.BindEnv("grpc.addr", "GRPC_ADDR")

	v.BindEnv("recording.dir", "RECORDINGS_DIR")
	v.BindEnv("recording.max_active_sessions", "RECORDING_MAX_ACTIVE_SESSIONS")
	v.BindEnv("recording.max_events_per_session", "RECORDING_MAX_EVENTS_PER_SESSION")
	v.BindEnv("recording.archive_on_stop", "RECORDING_ARCHIVE_ON_STOP")
	v.BindEnv("recording.context_kinds", "RECORDING_CONTEXT_KINDS")

	v.BindEnv("screenshot.dir", "SCREENSHOT_DIR")
	v.BindEnv("screenshot.command", "SCREENSHOT_COMMAND")

	v.BindEnv("desktop.display", "DISPLAY")
	v.BindEnv("desktop.xdotool", "XDOTOOL_PATH")

	v.BindEnv("browser.command", "BROWSER_COMMAND")

	v.BindEnv("stream.buffer", "STREAM_BUFFER")

	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")
	c.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")

	c.GRPC.Addr = v.GetString("grpc.addr")

	c.Recording.Dir = v.GetString("recording.dir")
	c.Recording.MaxActiveSessions = v.GetInt("recording.max_active_sessions")
	c.Recording.MaxEventsPerSession = v.GetInt("recording.max_events_per_session")
	c.Recording.ArchiveOnStop = v.GetBool("recording.archive_on_stop")
	c.Recording.ContextKinds = recording.ParseKinds(v.GetString("recording.context_kinds"))

	c.Screenshot.Dir = v.GetString("screenshot.dir")
	c.Screenshot.Command = v.GetString("screenshot.command")

	c.Desktop.Display = v.GetString("desktop.display")
	c.Desktop.Xdotool = v.GetString("desktop.xdotool")

	c.Browser.Command = v.GetString("browser.command")

	c.Stream.Buffer = v.GetInt("stream.buffer")

	if c.Recording.MaxActiveSessions < 0 || c.Recording.MaxEventsPerSession < 0 {
		return c, fmt.Errorf("config: recording limits must not be negative")
	}
	if c.Stream.Buffer <= 0 {
		c.Stream.Buffer = 64
	}
	return c, nil
}

// flagKeys maps config keys to the flag names RegisterFlags defines.
var flagKeys = map[string]string{
	"server.port":                      "port",
	"server.log_level":                 "log-level",
	"server.log_format":                "log-format",
	"grpc.addr":                        "grpc-addr",
	"recording.dir":                    "recordings-dir",
	"recording.max_active_sessions":    "max-active-sessions",
	"recording.max_events_per_session": "max-events-per-session",
	"recording.archive_on_stop":        "archive-on-stop",
	"screenshot.dir":                   "screenshot-dir",
	"desktop.display":                  "display",
}

// RegisterFlags defines the daemon's flags on fs. Defaults are left to Load,
// so an unset flag never masks the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("port", "", "HTTP listen port")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("grpc-addr", "", "gRPC listen address, \"off\" disables")
	fs.String("recordings-dir", "", "directory for per-session archives")
	fs.Int("max-active-sessions", 0, "maximum concurrently active sessions")
	fs.Int("max-events-per-session", 0, "maximum events stored per session")
	fs.Bool("archive-on-stop", false, "write session.json when a session stops")
	fs.String("screenshot-dir", "", "directory for captured screenshots")
	fs.String("display", "", "X display used by the input tools")
}

func toString(v any) string { return fmt.Sprint(v) }
