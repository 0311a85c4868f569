// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package config holds the Candidate Backing node's static
// configuration: where to reach the relay chain, which keystore to
// sign with, and which parachain this node backs.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// BackingConfig is the process-level configuration a backing node is
// launched with. NodeID is not user-supplied; Validate stamps it so every
// log line and metric this process emits can be correlated back to a
// single run.
type BackingConfig struct {
	NodeID string `validate:"required,uuid4"`

	RPCEndpoint  string `mapstructure:"rpc-endpoint" validate:"required,url"`
	KeystorePath string `mapstructure:"keystore-path" validate:"required"`
	ParaID       uint32 `mapstructure:"para-id" validate:"required"`

	LogLevel    string `mapstructure:"log-level" validate:"omitempty,oneof=error warn info debug trace"`
	MetricsBind string `mapstructure:"metrics-bind" validate:"omitempty,hostname_port"`

	RuntimeCacheSize int `mapstructure:"runtime-cache-size" validate:"omitempty,min=1"`
}

// Default returns a BackingConfig with every optional field set to its
// operational default, ready to be overridden by flags/env/config file
// and then validated.
func Default() BackingConfig {
	return BackingConfig{
		LogLevel:         "info",
		MetricsBind:      "127.0.0.1:9944",
		RuntimeCacheSize: 1024,
	}
}

// Validate checks c against its struct tags, stamping NodeID first if
// the caller left it empty.
func (c *BackingConfig) Validate() error {
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
