package remote

import (
	"jobstreak/internal/providers"
	"jobstreak/internal/structures"
	"time"
)

// NewTargets builds the configured write targets: the primary document store and,
// when configured, the REST mirror.
func NewTargets(conf *structures.Config, secrets providers.SecretsProviderInterface, logger providers.Logger) []Target {
	var targets []Target
	switch conf.Remote.Driver {
	case "postgres":
		targets = append(targets, NewPostgresStore(secrets.Lookup("remote.dsn", conf.Remote.DSN)))
	default:
		targets = append(targets, NewMemoryStore())
	}
	if conf.Remote.MirrorURL != "" {
		token := secrets.Lookup("mirror.token", "")
		targets = append(targets, NewRestMirror(conf.Remote.MirrorURL, token, conf.Remote.MirrorRate, nil))
	}
	for _, t := range targets {
		logger.Infof(providers.TypeSync, "Remote target enabled: %s", t.Name())
	}
	return targets
}

// NewConnectivitySource returns nil when no connectivity channel is configured.
func NewConnectivitySource(conf *structures.Config) ConnectivitySource {
	if conf.Remote.ConnectivityURL == "" {
		return nil
	}
	return NewWebsocketConnectivity(conf.Remote.ConnectivityURL)
}

func NewProber(conf *structures.Config, targets []Target) Prober {
	switch {
	case conf.Remote.ProbeURL != "":
		return NewHTTPProber(conf.Remote.ProbeURL, 5*time.Second)
	case conf.Remote.ConnectivityURL != "":
		return NewWebsocketConnectivity(conf.Remote.ConnectivityURL)
	case len(targets) > 0:
		return NewTargetProber(targets[0])
	default:
		return nil
	}
}

// FindFriendsSource returns the first target able to answer friend queries.
func FindFriendsSource(targets []Target) FriendsSource {
	for _, t := range targets {
		if fs, ok := t.(FriendsSource); ok {
			return fs
		}
	}
	return nil
}
