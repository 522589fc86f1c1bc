package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FeedCredentials is the social feed API key file.
type FeedCredentials struct {
	BearerToken string `yaml:"bearer_token"`
	APIURL      string `yaml:"api_url"`
	StreamURL   string `yaml:"stream_url"`
}

// ExchangeCredentials is the exchange API key file.
type ExchangeCredentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

func LoadFeedCredentials(path string) (FeedCredentials, error) {
	var c FeedCredentials
	if err := readYAML(path, &c); err != nil {
		return c, err
	}
	if c.BearerToken == "" || c.APIURL == "" || c.StreamURL == "" {
		return c, fmt.Errorf("%s: bearer_token, api_url and stream_url are required", path)
	}
	return c, nil
}

func LoadExchangeCredentials(path string) (ExchangeCredentials, error) {
	var c ExchangeCredentials
	if err := readYAML(path, &c); err != nil {
		return c, err
	}
	if c.APIKey == "" || c.APISecret == "" {
		return c, fmt.Errorf("%s: api_key and api_secret are required", path)
	}
	return c, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
