package stack

import (
	"strconv"

	"github.com/spf13/viper"
)

// Settings are the stack-level key/value options consumed at load time.
// The controller only threads them through to service environments; it
// never interprets their meaning.
//
// Sources, highest precedence first:
//  1. STACKCTL_* environment variables
//  2. the settings: section of the stack file
type Settings struct {
	// Model is the target inference model identifier.
	Model string `yaml:"model,omitempty" mapstructure:"model"`

	// MonitorURL is the externally reachable base URL of the
	// monitoring web UI.
	MonitorURL string `yaml:"monitor_url,omitempty" mapstructure:"monitor_url"`

	// InferenceURL is the externally reachable base URL of the
	// inference engine.
	InferenceURL string `yaml:"inference_url,omitempty" mapstructure:"inference_url"`

	// ReadOnly puts the protocol bridge in read-only mode.
	ReadOnly bool `yaml:"read_only,omitempty" mapstructure:"read_only"`

	// Credential placeholders, passed through verbatim.
	User     string `yaml:"user,omitempty" mapstructure:"user"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	APIToken string `yaml:"api_token,omitempty" mapstructure:"api_token"`
}

// settingsEnv maps settings keys to their environment variable overrides.
var settingsEnv = map[string]string{
	"settings.model":         "STACKCTL_MODEL",
	"settings.monitor_url":   "STACKCTL_MONITOR_URL",
	"settings.inference_url": "STACKCTL_INFERENCE_URL",
	"settings.read_only":     "STACKCTL_READ_ONLY",
	"settings.user":          "STACKCTL_USER",
	"settings.password":      "STACKCTL_PASSWORD",
	"settings.api_token":     "STACKCTL_API_TOKEN",
}

// loadSettings reads the settings: section of the stack file with
// environment overrides applied.
func loadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, env := range settingsEnv {
		// BindEnv only errors on empty arguments.
		_ = v.BindEnv(key, env)
	}
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, Configf("read %s: %v", path, err)
	}

	return Settings{
		Model:        v.GetString("settings.model"),
		MonitorURL:   v.GetString("settings.monitor_url"),
		InferenceURL: v.GetString("settings.inference_url"),
		ReadOnly:     v.GetBool("settings.read_only"),
		User:         v.GetString("settings.user"),
		Password:     v.GetString("settings.password"),
		APIToken:     v.GetString("settings.api_token"),
	}, nil
}

// Vars returns the settings as a flat map for ${KEY} expansion in
// service env values.
func (s Settings) Vars() map[string]string {
	return map[string]string{
		"MODEL":         s.Model,
		"MONITOR_URL":   s.MonitorURL,
		"INFERENCE_URL": s.InferenceURL,
		"READ_ONLY":     strconv.FormatBool(s.ReadOnly),
		"USER":          s.User,
		"PASSWORD":      s.Password,
		"API_TOKEN":     s.APIToken,
	}
}
