// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/bridge/coordinator"
	"github.com/luxfi/bridge/events/rabbitmq"
)

const (
	defaultHTTPPort      = 9650
	defaultCacheSize     = 1024
	defaultRedisPrefix   = "bridge:ratelimit"
	defaultHealthTimeout = 5 * time.Second
)

// AddFlags registers every daemon setting on [flags]. Each flag can also be
// set through a BRIDGE_ environment variable or the config file.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "Path to a config file (json, yaml or toml)")
	flags.String(DataDirKey, "", "Directory of the on-disk database. Empty keeps all state in memory")
	flags.Int(CacheSizeKey, defaultCacheSize, "Number of transfers kept in the read cache")

	flags.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	flags.Uint16(HTTPPortKey, defaultHTTPPort, "Port of the HTTP server")
	flags.StringSlice(HTTPAllowedOriginsKey, []string{"*"}, "Origins allowed to make CORS requests")
	flags.StringSlice(HTTPAllowedHostsKey, []string{"localhost"}, "Hosts the HTTP server answers to. '*' allows any host")
	flags.Duration(HTTPReadTimeoutKey, 30*time.Second, "Maximum duration for reading an entire request")
	flags.Duration(HTTPReadHeaderTimeoutKey, 30*time.Second, "Maximum duration for reading request headers")
	flags.Duration(HTTPWriteTimeoutKey, 30*time.Second, "Maximum duration before timing out writes of a response")
	flags.Duration(HTTPIdleTimeoutKey, 120*time.Second, "Maximum duration to wait for the next request on a keep-alive connection")
	flags.Duration(HTTPShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for open requests on shutdown")
	flags.Duration(HealthCheckTimeoutKey, defaultHealthTimeout, "Maximum duration of a single health check")

	flags.String(JWTSecretKey, "", "HS256 secret used to authenticate callers. Empty disables caller operations")

	flags.String(RedisURLKey, "", "Redis URL for shared rate limit counters. Empty keeps counters in the database")
	flags.String(RedisPrefixKey, defaultRedisPrefix, "Key prefix of the Redis rate limit counters")
	flags.String(AMQPURLKey, "", "AMQP URL of the event broker. Empty disables event publishing")
	flags.String(AMQPExchangeKey, rabbitmq.DefaultExchange, "Exchange transfer events are published to")

	flags.String(OwnerKey, "", "Address of the bridge owner (required)")
	flags.String(LocalChainKey, coordinator.DefaultLocalChain, "Name of the chain this bridge mints and burns on")
	flags.String(RemoteChainKey, coordinator.DefaultRemoteChain, "Name of the counterpart chain")
	flags.Duration(TransferTimeoutKey, coordinator.DefaultTransferTimeout, "Age after which anyone may cancel a pending transfer")
	flags.Uint64(MinTransferAmountKey, coordinator.DefaultMinTransferAmount, "Smallest transfer amount")
	flags.Uint64(MaxTransferAmountKey, coordinator.DefaultMaxTransferAmount, "Largest transfer amount")
	flags.Uint64(DailyLimitKey, coordinator.DefaultDailyLimit, "Daily volume ceiling, global and per sender")
	flags.Uint64(TransferFeeKey, coordinator.DefaultTransferFee, "Fee burned on top of each transfer")
	flags.StringSlice(ValidatorsKey, nil, "Initial validator addresses")
	flags.Int(MinValidatorsKey, coordinator.DefaultMinValidators, "Number of validator signatures needed to confirm a transfer")
	flags.StringSlice(AllocationsKey, nil, "Genesis balances as address=amount, minted on first start")
}
