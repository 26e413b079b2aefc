package config

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

var (
	configFilePaths = []string{
		"/etc/notebook/config.yaml",
		"/etc/notebook/config.yml",
		"$HOME/.notebook/config.yaml",
		"$HOME/.notebook/config.yml",
		"./notebook.yaml",
		"./notebook.yml",
	}
	errConfigFileNotFound = errors.New("config file not found")
)

const envPrefix = "NOTEBOOK_"

// Defaults is implemented by config sections that seed missing keys.
type Defaults interface {
	Defaults() map[string]any
}

// Validator is implemented by config sections that can reject bad values.
type Validator interface {
	Validate() error
}

type Manager interface {
	Init() error
	Config() *Config
	Save() error
	ConfigFile() string
	ConfigDir() string
	SetLogger(logger *zap.Logger)
}

var _ Manager = (*ManagerDefault)(nil)

type Config struct {
	Core CoreConfig `mapstructure:"core"`
}

type ManagerDefault struct {
	config     *koanf.Koanf
	root       *Config
	changes    bool
	configFile string
	logger     *zap.Logger
}

func NewManager() (*ManagerDefault, error) {
	return newManager(findConfigFile(false, false))
}

// NewManagerFromFile loads a specific file instead of searching the default locations.
func NewManagerFromFile(configFile string) (*ManagerDefault, error) {
	return newManager(configFile)
}

func newManager(configFile string) (*ManagerDefault, error) {
	k, err := newConfig(configFile)
	if err != nil && !errors.Is(err, errConfigFileNotFound) {
		return nil, err
	}

	exists := err == nil

	return &ManagerDefault{
		config:     k,
		changes:    !exists,
		configFile: configFile,
		logger:     zap.NewNop(),
	}, nil
}

func (m *ManagerDefault) SetLogger(logger *zap.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *ManagerDefault) hooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		clusterConfigHook(),
		cacheConfigHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	}
}

func (m *ManagerDefault) Init() error {
	m.root = &Config{}

	err := m.setDefaultsForObject(m.root.Core, "core")
	if err != nil {
		return err
	}
	err = m.maybeSave()
	if err != nil {
		return err
	}

	// Environment overrides, e.g. NOTEBOOK_CORE__STORAGE__S3__BUCKET.
	err = m.config.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return err
	}

	err = m.config.UnmarshalWithConf("", &m.root, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(m.hooks()...),
			Metadata:         nil,
			Result:           &m.root,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return err
	}

	err = m.validateObject(m.root)
	if err != nil {
		return err
	}

	m.maybeConfigureCluster()

	return nil
}

func (m *ManagerDefault) setDefaultsForObject(obj interface{}, prefix string) error {
	objValue := reflect.ValueOf(obj)
	objType := reflect.TypeOf(obj)

	if objValue.Kind() == reflect.Ptr {
		objValue = objValue.Elem()
		objType = objType.Elem()
	}

	if setter, ok := obj.(Defaults); ok {
		m.applyDefaults(setter, prefix)
	}

	for i := 0; i < objValue.NumField(); i++ {
		field := objValue.Field(i)
		fieldType := objType.Field(i)

		if !field.CanInterface() {
			continue
		}

		mapstructureTag := fieldType.Tag.Get("mapstructure")

		newPrefix := prefix
		if mapstructureTag != "" && mapstructureTag != "-" {
			if newPrefix != "" {
				newPrefix += "."
			}
			newPrefix += mapstructureTag
		}

		if field.Kind() == reflect.Struct {
			if err := m.setDefaultsForObject(field.Interface(), newPrefix); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *ManagerDefault) validateObject(obj interface{}) error {
	objValue := reflect.ValueOf(obj)

	if objValue.Kind() == reflect.Ptr {
		if objValue.IsNil() {
			return nil
		}
		objValue = objValue.Elem()
	}

	if validator, ok := obj.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	if objValue.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < objValue.NumField(); i++ {
		field := objValue.Field(i)

		if !field.CanInterface() {
			continue
		}

		if field.Kind() == reflect.Struct || (field.Kind() == reflect.Ptr && !field.IsNil() && field.Elem().Kind() == reflect.Struct) {
			if err := m.validateObject(field.Interface()); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *ManagerDefault) applyDefaults(setter Defaults, prefix string) {
	for key, value := range setter.Defaults() {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if !m.config.Exists(fullKey) {
			_ = m.config.Set(fullKey, value)
			m.changes = true
		}
	}
}

func (m *ManagerDefault) maybeSave() error {
	if !m.changes {
		return nil
	}

	data, err := m.config.Marshal(yaml.Parser())
	if err != nil {
		return err
	}

	configFile := m.configFile
	if configFile == "" {
		configFile = findConfigFile(true, true)
	}
	if configFile == "" {
		m.logger.Warn("no writable config location found, defaults kept in memory")
		m.changes = false
		return nil
	}

	if err = os.MkdirAll(path.Dir(configFile), 0755); err != nil {
		return err
	}
	if err = os.WriteFile(configFile, data, 0644); err != nil {
		return err
	}

	m.configFile = configFile
	m.changes = false

	return nil
}

func (m *ManagerDefault) maybeConfigureCluster() {
	if m.root.Core.ClusterEnabled() {
		if m.root.Core.DB.Cache == nil {
			m.root.Core.DB.Cache = &CacheConfig{}
		}
		m.root.Core.DB.Cache.Mode = "redis"
		m.root.Core.DB.Cache.Options = m.root.Core.Clustered.Redis
	}
}

func (m *ManagerDefault) Config() *Config {
	return m.root
}

func (m *ManagerDefault) Save() error {
	m.changes = true
	return m.maybeSave()
}

func (m *ManagerDefault) ConfigFile() string {
	return m.configFile
}

func (m *ManagerDefault) ConfigDir() string {
	if m.configFile == "" {
		return "."
	}
	return filepath.Dir(m.configFile)
}

func newConfig(configFile string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if configFile == "" {
		return k, errConfigFileNotFound
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return k, errConfigFileNotFound
	}

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, err
	}

	return k, nil
}

func findConfigFile(dirCheck bool, ignoreExist bool) string {
	for _, _path := range configFilePaths {
		expandedPath := os.ExpandEnv(_path)
		_, err := os.Stat(expandedPath)
		if err == nil {
			return expandedPath
		}
		if os.IsNotExist(err) && dirCheck {
			_, err := os.Stat(path.Dir(expandedPath))
			if err == nil || ignoreExist {
				return expandedPath
			}
		}
	}

	return ""
}
