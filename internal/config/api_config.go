package config

type APIConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

func (config *APIConfig) setDefaults() {
	if config.Port == 0 {
		config.Port = 8081
	}
	if config.MetricsPort == 0 {
		config.MetricsPort = 8080
	}
}
