// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the bridge daemon settings from flags, BRIDGE_
// environment variables and an optional config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/bridge/api/server"
	"github.com/luxfi/bridge/coordinator"
)

const (
	envPrefix         = "BRIDGE"
	defaultConfigName = "bridged"
)

var (
	errInvalidAddress    = errors.New("invalid address")
	errInvalidAllocation = errors.New("allocation must be address=amount")
	errNoHTTPPort        = errors.New("http port must be set")
	errInvalidCacheSize  = errors.New("cache size must be positive")
)

// Allocation is a balance minted into the local ledger on first start.
type Allocation struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

type Config struct {
	DataDir   string `json:"dataDir"`
	CacheSize int    `json:"cacheSize"`

	HTTPHost      string        `json:"httpHost"`
	HTTPPort      uint16        `json:"httpPort"`
	HTTP          server.Config `json:"http"`
	HealthTimeout time.Duration `json:"healthTimeout"`

	JWTSecret string `json:"-"`

	RedisURL     string `json:"redisURL"`
	RedisPrefix  string `json:"redisPrefix"`
	AMQPURL      string `json:"-"`
	AMQPExchange string `json:"amqpExchange"`

	Coordinator coordinator.Config `json:"coordinator"`
	Allocations []Allocation       `json:"allocations"`
}

// HTTPAddress returns host:port of the API server.
func (c Config) HTTPAddress() string {
	return net.JoinHostPort(c.HTTPHost, strconv.FormatUint(uint64(c.HTTPPort), 10))
}

func (c Config) Validate() error {
	if c.HTTPPort == 0 {
		return errNoHTTPPort
	}
	if c.CacheSize <= 0 {
		return errInvalidCacheSize
	}
	return c.Coordinator.Validate()
}

// Load reads the settings registered by AddFlags.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}

	if file := v.GetString(ConfigFileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config, err := parse(v)
	if err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

func parse(v *viper.Viper) (Config, error) {
	config := Config{
		DataDir:   strings.TrimSpace(v.GetString(DataDirKey)),
		CacheSize: v.GetInt(CacheSizeKey),
		HTTPHost:  v.GetString(HTTPHostKey),
		HTTPPort:  v.GetUint16(HTTPPortKey),
		HTTP: server.Config{
			HTTPConfig: server.HTTPConfig{
				ReadTimeout:       v.GetDuration(HTTPReadTimeoutKey),
				ReadHeaderTimeout: v.GetDuration(HTTPReadHeaderTimeoutKey),
				WriteTimeout:      v.GetDuration(HTTPWriteTimeoutKey),
				IdleTimeout:       v.GetDuration(HTTPIdleTimeoutKey),
			},
			AllowedOrigins:  list(v.GetStringSlice(HTTPAllowedOriginsKey)),
			AllowedHosts:    list(v.GetStringSlice(HTTPAllowedHostsKey)),
			ShutdownTimeout: v.GetDuration(HTTPShutdownTimeoutKey),
		},
		HealthTimeout: v.GetDuration(HealthCheckTimeoutKey),
		JWTSecret:     v.GetString(JWTSecretKey),
		RedisURL:      strings.TrimSpace(v.GetString(RedisURLKey)),
		RedisPrefix:   strings.TrimSpace(v.GetString(RedisPrefixKey)),
		AMQPURL:       strings.TrimSpace(v.GetString(AMQPURLKey)),
		AMQPExchange:  strings.TrimSpace(v.GetString(AMQPExchangeKey)),
	}

	var owner common.Address
	if raw := strings.TrimSpace(v.GetString(OwnerKey)); raw != "" {
		var err error
		owner, err = parseAddress(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", OwnerKey, err)
		}
	}
	config.Coordinator = coordinator.DefaultConfig(owner)
	config.Coordinator.LocalChain = v.GetString(LocalChainKey)
	config.Coordinator.RemoteChain = v.GetString(RemoteChainKey)
	config.Coordinator.TransferTimeout = v.GetDuration(TransferTimeoutKey)
	config.Coordinator.Params.MinTransferAmount = v.GetUint64(MinTransferAmountKey)
	config.Coordinator.Params.MaxTransferAmount = v.GetUint64(MaxTransferAmountKey)
	config.Coordinator.Params.DailyLimit = v.GetUint64(DailyLimitKey)
	config.Coordinator.Params.TransferFee = v.GetUint64(TransferFeeKey)
	config.Coordinator.MinValidators = v.GetInt(MinValidatorsKey)

	for _, raw := range list(v.GetStringSlice(ValidatorsKey)) {
		addr, err := parseAddress(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", ValidatorsKey, err)
		}
		config.Coordinator.Validators = append(config.Coordinator.Validators, addr)
	}

	for _, raw := range list(v.GetStringSlice(AllocationsKey)) {
		allocation, err := parseAllocation(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", AllocationsKey, err)
		}
		config.Allocations = append(config.Allocations, allocation)
	}
	return config, nil
}

// list flattens comma separated entries. Environment variables arrive as a
// single string.
func list(values []string) []string {
	var out []string
	for _, value := range values {
		for _, entry := range strings.Split(value, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				out = append(out, entry)
			}
		}
	}
	return out
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAllocation(raw string) (Allocation, error) {
	addrStr, amountStr, ok := strings.Cut(raw, "=")
	if !ok {
		return Allocation{}, fmt.Errorf("%w: %q", errInvalidAllocation, raw)
	}
	addr, err := parseAddress(strings.TrimSpace(addrStr))
	if err != nil {
		return Allocation{}, err
	}
	balance, err := strconv.ParseUint(strings.TrimSpace(amountStr), 10, 64)
	if err != nil {
		return Allocation{}, fmt.Errorf("%w: %q: %w", errInvalidAllocation, raw, err)
	}
	return Allocation{
		Address: addr,
		Balance: balance,
	}, nil
}
