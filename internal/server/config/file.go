package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of Config. Durations accept "15m" style
// strings or integer nanoseconds. Zero values leave the current setting alone.
type FileConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	RequestTimeout               timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	StoreBackend                 string         `json:"store_backend" yaml:"store_backend"`
	RedisAddr                    string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword                string         `json:"redis_password" yaml:"redis_password"`
	RedisDB                      int            `json:"redis_db" yaml:"redis_db"`
	KakaoClientID                string         `json:"kakao_client_id" yaml:"kakao_client_id"`
	KakaoClientSecret            string         `json:"kakao_client_secret" yaml:"kakao_client_secret"`
	KakaoRedirectURL             string         `json:"kakao_redirect_url" yaml:"kakao_redirect_url"`
	LogBackend                   string         `json:"log_backend" yaml:"log_backend"`
	SecretKeyS3Bucket            string         `json:"secret_key_s3_bucket" yaml:"secret_key_s3_bucket"`
	SecretKeyS3Object            string         `json:"secret_key_s3_object" yaml:"secret_key_s3_object"`
	S3Region                     string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3RootUser                   string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password" yaml:"s3_root_password"`
}

// parseFile overlays the file named by -c/-config onto config. A missing
// flag loads nothing; an unreadable or invalid file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	fc, err := readFile(path)
	if err != nil {
		panic(err)
	}
	fc.apply(config)
}

func readFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc := &FileConfig{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	case ".json", "":
		err = json.Unmarshal(data, fc)
	default:
		return nil, fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func (fc *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SecretKey, fc.SecretKey)
	if fc.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		config.RequestTimeout = fc.RequestTimeout.Duration
	}
	setString(&config.StoreBackend, fc.StoreBackend)
	setString(&config.RedisAddr, fc.RedisAddr)
	setString(&config.RedisPassword, fc.RedisPassword)
	if fc.RedisDB != 0 {
		config.RedisDB = fc.RedisDB
	}
	setString(&config.KakaoClientID, fc.KakaoClientID)
	setString(&config.KakaoClientSecret, fc.KakaoClientSecret)
	setString(&config.KakaoRedirectURL, fc.KakaoRedirectURL)
	setString(&config.LogBackend, fc.LogBackend)
	setString(&config.SecretKeyS3Bucket, fc.SecretKeyS3Bucket)
	setString(&config.SecretKeyS3Object, fc.SecretKeyS3Object)
	setString(&config.S3Region, fc.S3Region)
	setString(&config.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&config.S3RootUser, fc.S3RootUser)
	setString(&config.S3RootPassword, fc.S3RootPassword)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
