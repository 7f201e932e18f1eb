package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/life4/genesis/slices"
	"gopkg.in/yaml.v3"
)

type S3 struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Secure          bool   `yaml:"secure"`
}
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}
type Storage struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
type KeepAlive struct {
	Addr string `yaml:"addr"`
	URL  string `yaml:"url"`
}
type Config struct {
	Server           string    `yaml:"server"`
	Token            string    `yaml:"token"`
	BotUsername      string    `yaml:"bot_username"`
	AdminIDs         []int64   `yaml:"admin_ids"`
	MainChannel      string    `yaml:"main_channel"`
	MainChannelLink  string    `yaml:"main_channel_link"`
	BroadcastChannel string    `yaml:"broadcast_channel"`
	CustomCaption    bool      `yaml:"custom_caption"`
	Log              Log       `yaml:"log"`
	Storage          Storage   `yaml:"storage"`
	S3               S3        `yaml:"s3"`
	Redis            Redis     `yaml:"redis"`
	KeepAlive        KeepAlive `yaml:"keep_alive"`
}

const (
	StorageDriverFile  = "file"
	StorageDriverS3    = "s3"
	StorageDriverRedis = "redis"
)

// LoadConfig reads path (a missing file is allowed when the environment
// carries the required values), applies environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	var config Config
	v, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err = yaml.Unmarshal(v, &config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err = config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (o *Config) applyEnv() error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		o.Token = v
	}
	if v := os.Getenv("MAIN_CHANNEL"); v != "" {
		o.MainChannel = v
	}
	if v := os.Getenv("BROADCAST_CHANNEL"); v != "" {
		o.BroadcastChannel = v
	}
	if v := os.Getenv("KEEP_ALIVE_ADDR"); v != "" {
		o.KeepAlive.Addr = v
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := parseIDList(v)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		o.AdminIDs = ids
	}
	return nil
}

func (o *Config) applyDefaults() {
	if o.Server == "" {
		o.Server = "https://api.telegram.org"
	}
	if o.Storage.Driver == "" {
		o.Storage.Driver = StorageDriverFile
	}
	if o.Storage.Dir == "" {
		o.Storage.Dir = "data"
	}
	if o.KeepAlive.Addr == "" {
		o.KeepAlive.Addr = ":8080"
	}
	if o.Log.Level == "" {
		o.Log.Level = "info"
	}
}

func (o *Config) Validate() error {
	if o.Token == "" {
		return errors.New("token is required (config.yml or BOT_TOKEN)")
	}
	if len(o.AdminIDs) == 0 {
		return errors.New("at least one admin id is required")
	}
	switch o.Storage.Driver {
	case StorageDriverFile, StorageDriverS3, StorageDriverRedis:
	default:
		return fmt.Errorf("unknown storage driver %q", o.Storage.Driver)
	}
	return nil
}

func (o *Config) IsAdmin(userID int64) bool {
	return slices.Contains(o.AdminIDs, userID)
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
