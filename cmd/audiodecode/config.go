package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen   = ":8765"
	defaultLogLevel = "info"
)

// fileConfig mirrors the YAML config file.
type fileConfig struct {
	Module   string `yaml:"module"`
	Offload  bool   `yaml:"offload"`
	Remote   string `yaml:"remote"`
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// settings is the resolved configuration.
type settings struct {
	Module   string
	Offload  bool
	Remote   string
	Listen   string
	LogLevel string
	LogJSON  bool
}

func loadConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.TrimSpace(path) == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// resolve layers flags and env (already merged by kong) over the file and
// defaults. Booleans can only be switched on by a lower layer.
func resolve(g *Globals, fc fileConfig) settings {
	s := settings{
		Module:   fc.Module,
		Offload:  fc.Offload || g.Offload,
		Remote:   fc.Remote,
		Listen:   defaultListen,
		LogLevel: defaultLogLevel,
		LogJSON:  fc.LogJSON || g.LogJSON,
	}
	if v := strings.TrimSpace(fc.Listen); v != "" {
		s.Listen = v
	}
	if v := strings.TrimSpace(fc.LogLevel); v != "" {
		s.LogLevel = v
	}

	if v := strings.TrimSpace(g.Module); v != "" {
		s.Module = v
	}
	if v := strings.TrimSpace(g.Remote); v != "" {
		s.Remote = v
	}
	if v := strings.TrimSpace(g.LogLevel); v != "" {
		s.LogLevel = v
	}
	return s
}
