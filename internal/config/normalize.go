package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}

	c.Linker.BaseURL = strings.TrimRight(strings.TrimSpace(c.Linker.BaseURL), "/")
	c.Linker.APIKey = strings.TrimSpace(c.Linker.APIKey)

	tiers := make([]string, 0, len(c.Processing.Tiers))
	for _, tier := range c.Processing.Tiers {
		tier = strings.ToLower(strings.TrimSpace(tier))
		if tier == "" {
			continue
		}
		tiers = append(tiers, tier)
	}
	c.Processing.Tiers = tiers
	if c.Processing.MaxTiersPerCall <= 0 {
		c.Processing.MaxTiersPerCall = len(tiers)
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
