package app

import (
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"taximeter/internal/config"
)

// NewNewRelicApp starts the New Relic agent when it is enabled and a license
// key is configured. It returns nil otherwise, or when the agent fails to start.
func NewNewRelicApp(cfg config.NewRelicConfig) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logrus.WithError(err).Error("failed to initialize New Relic")
		return nil
	}
	logrus.Infof("New Relic enabled: app=%s", cfg.AppName)
	return nrApp
}
