// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"errors"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/bridge/api/bridge"
	"github.com/luxfi/bridge/config"
)

const (
	AddressKey = "address"
	TTLKey     = "ttl"

	defaultTTL = 24 * time.Hour
)

var errInvalidAddress = errors.New("--address must be a hex address")

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "token",
		Short: "Issues an API token identifying an address",
		RunE:  tokenFunc,
	}
	AddFlags(c.Flags())
	return c
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(config.JWTSecretKey, "", "HS256 secret shared with the daemon")
	flags.String(AddressKey, "", "Address the token identifies (required)")
	flags.Duration(TTLKey, defaultTTL, "Lifetime of the token")
}

func tokenFunc(c *cobra.Command, _ []string) error {
	v := viper.New()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(c.Flags()); err != nil {
		return err
	}

	address := v.GetString(AddressKey)
	if !common.IsHexAddress(address) {
		return errInvalidAddress
	}
	auth, err := bridge.NewAuthenticator([]byte(v.GetString(config.JWTSecretKey)))
	if err != nil {
		return err
	}
	token, err := auth.NewToken(common.HexToAddress(address), time.Now(), v.GetDuration(TTLKey))
	if err != nil {
		return err
	}
	c.Println(token)
	return nil
}
