// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	ConfigFileKey = "config-file"
	DataDirKey    = "data-dir"
	CacheSizeKey  = "cache-size"

	HTTPHostKey              = "http-host"
	HTTPPortKey              = "http-port"
	HTTPAllowedOriginsKey    = "http-allowed-origins"
	HTTPAllowedHostsKey      = "http-allowed-hosts"
	HTTPReadTimeoutKey       = "http-read-timeout"
	HTTPReadHeaderTimeoutKey = "http-read-header-timeout"
	HTTPWriteTimeoutKey      = "http-write-timeout"
	HTTPIdleTimeoutKey       = "http-idle-timeout"
	HTTPShutdownTimeoutKey   = "http-shutdown-timeout"
	HealthCheckTimeoutKey    = "health-check-timeout"

	JWTSecretKey = "jwt-secret"

	RedisURLKey     = "redis-url"
	RedisPrefixKey  = "redis-prefix"
	AMQPURLKey      = "amqp-url"
	AMQPExchangeKey = "amqp-exchange"

	OwnerKey             = "owner"
	LocalChainKey        = "local-chain"
	RemoteChainKey       = "remote-chain"
	TransferTimeoutKey   = "transfer-timeout"
	MinTransferAmountKey = "min-transfer-amount"
	MaxTransferAmountKey = "max-transfer-amount"
	DailyLimitKey        = "daily-limit"
	TransferFeeKey       = "transfer-fee"
	ValidatorsKey        = "validators"
	MinValidatorsKey     = "min-validators"
	AllocationsKey       = "genesis-allocations"
)
