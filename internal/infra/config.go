package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации mccli.
// Значения собираются из файла, ENV и флагов командной строки (в порядке
// возрастания приоритета).
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Token    TokenConfig    `mapstructure:"token"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	DryRun   bool           `mapstructure:"dry_run"`
}

// EndpointConfig описывает доступ к сервису motley_cue.
type EndpointConfig struct {
	URL      string        `mapstructure:"url"`      // --mc-endpoint; пусто = discovery по ssh-хосту
	Insecure bool          `mapstructure:"insecure"` // отключить проверку TLS-сертификата, NOT RECOMMENDED
	Timeout  time.Duration `mapstructure:"timeout"`  // connect/read таймаут HTTP-запросов
}

// TokenConfig описывает источники Access Token в порядке приоритета.
type TokenConfig struct {
	Value          string `mapstructure:"value"`   // токен напрямую
	Account        string `mapstructure:"account"` // имя аккаунта в oidc-agent
	Issuer         string `mapstructure:"issuer"`  // URL issuer'а
	ValidateLength bool   `mapstructure:"validate_length"`
}

// AgentConfig описывает подключение к oidc-agent.
type AgentConfig struct {
	Socket  string        `mapstructure:"socket"` // путь к UNIX-сокету, по умолчанию $OIDC_SOCK
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig настраивает дисковый кэш HTTP-ответов.
type CacheConfig struct {
	Dir         string        `mapstructure:"dir"`
	ExpireAfter time.Duration `mapstructure:"expire_after"`
	Disabled    bool          `mapstructure:"disabled"` // --no-cache
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// Переменные окружения, из которых берется токен, в порядке проверки.
// Порядок — контракт: первая непустая переменная выигрывает.
var tokenEnvVars = []string{
	"ACCESS_TOKEN", "OIDC",
	"OS_ACCESS_TOKEN", "OIDC_ACCESS_TOKEN",
	"WATTS_TOKEN", "WATTSON_TOKEN",
}

var accountEnvVars = []string{"OIDC_AGENT_ACCOUNT"}

var issuerEnvVars = []string{"OIDC_ISS", "OIDC_ISSUER"}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Поиск файла: ~/.config/mccli/config.yaml, потом рабочая директория
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "mccli"))
	}
	v.AddConfigPath(".")

	// 2. ENV с префиксом: MCCLI_ENDPOINT_URL перекроет endpoint.url
	v.SetEnvPrefix("mccli")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолтные значения
	setDefaults(v)

	// 4. Чтение файла; отсутствие файла — не ошибка, работаем на ENV и дефолтах
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// 6. Источники токена из классических переменных окружения,
	// если не заданы явно (флаги обрабатываются выше по стеку)
	if cfg.Token.Value == "" {
		cfg.Token.Value = firstEnv(tokenEnvVars)
	}
	if cfg.Token.Account == "" {
		cfg.Token.Account = firstEnv(accountEnvVars)
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = firstEnv(issuerEnvVars)
	}
	if cfg.Agent.Socket == "" {
		cfg.Agent.Socket = os.Getenv("OIDC_SOCK")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Таймаут чуть больше кратного 3с (окно ретрансмиссии TCP-пакетов):
	// discovery-пробы обязаны быстро падать за молчащим фаерволом
	v.SetDefault("endpoint.timeout", 3050*time.Millisecond)
	v.SetDefault("token.validate_length", true)
	v.SetDefault("agent.timeout", 5*time.Second)
	v.SetDefault("cache.expire_after", 5*time.Minute)
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("cache.dir", filepath.Join(home, ".cache", "mccli"))
	}
	v.SetDefault("logger.level", "error")
	v.SetDefault("logger.format", "console")
}

// firstEnv возвращает значение первой непустой переменной окружения из списка.
func firstEnv(keys []string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}
