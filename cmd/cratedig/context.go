package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cratedig/internal/apiclient"
	"cratedig/internal/config"
)

type commandContext struct {
	configFlag  *string
	addressFlag *string
	jsonFlag    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addressFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		addressFlag: addressFlag,
		jsonFlag:    jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) apiAddress() (string, error) {
	if c.addressFlag != nil {
		if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
			return addr, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	addr, err := c.apiAddress()
	if err != nil {
		return err
	}
	var token string
	if cfg, cfgErr := c.ensureConfig(); cfgErr == nil {
		token = cfg.Paths.APIToken
	}
	client, err := apiclient.New(addr, apiclient.WithToken(token))
	if err != nil {
		return err
	}
	return fn(client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
