package config

import (
	"errors"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"ticketboard.com/pkg/logger"
)

type options struct {
	defaults map[string]any
	paths    []string
	onReload func()
}

// Option tweaks LoadAndWatch.
type Option func(o *options)

// WithDefaults registers fallback values keyed by dotted path ("stream.buffer_size").
// Keys listed here can also be overridden from the environment.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// WithPaths replaces the search paths (default ./config and .).
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = paths }
}

// OnReload is called after a successful hot reload.
func OnReload(fn func()) Option {
	return func(o *options) { o.onReload = fn }
}

// LoadAndWatch 读取 {service}.yaml 并反序列化到 out，之后监听文件变更热更新。
//
// 环境变量覆盖，例如 service=ticket-service 时：
//
//	TICKET_SERVICE_HTTP_ADDR 覆盖 http.addr
//	TICKET_SERVICE_DB_SOURCE_NAME 覆盖 db.source_name
//
// 找不到配置文件不算错误，只用默认值 + 环境变量。
func LoadAndWatch(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := options{paths: []string{"./config", "."}}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix(service))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	if !fileFound {
		logger.Log.Info("config file not found, using defaults and env", zap.String("service", service))
		return v, nil
	}
	logger.Log.Info("config loaded", zap.String("service", service), zap.String("file", v.ConfigFileUsed()))

	// 监听文件变更，热更新到 out
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Log.Info("config file changed", zap.String("service", service), zap.String("file", e.Name))
		if err := v.Unmarshal(out); err != nil {
			logger.Log.Error("reload config error", zap.String("service", service), zap.Error(err))
			return
		}
		if o.onReload != nil {
			o.onReload()
		}
	})
	v.WatchConfig()

	return v, nil
}

// envPrefix "ticket-service" -> "TICKET_SERVICE"
func envPrefix(service string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(service))
}
