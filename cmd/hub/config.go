package main

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is every flag the hub binary accepts, grounded on the teacher's
// cmd/scaffold.go baseFlags shape: pflag registers defaults and usage
// strings, viper.BindPFlag lets the same values be overridden by
// HUB_-prefixed environment variables without touching the flag set.
type Config struct {
	DataDir          string
	InMemory         bool
	ListenAddr       string // libp2p gossip listen multiaddr
	HTTPAddr         string // rpc.Server JSON surface
	GRPCAddr         string // rpc health check
	LogLevel         string
	FeatureReactions bool
	SyncInterval     time.Duration
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String("datadir", "hub-data", "directory for the badger key-value store")
	flags.Bool("in-memory", false, "use an in-memory key-value store instead of datadir (for tests/demos)")
	flags.String("listen-addr", "/ip4/0.0.0.0/tcp/2282", "libp2p gossip listen multiaddress")
	flags.String("http-addr", ":2283", "address for the JSON rpc surface")
	flags.String("grpc-addr", ":2284", "address for the grpc health check service")
	flags.String("loglevel", "info", "zerolog level: trace, debug, info, warn, error")
	flags.Bool("feature-reactions", true, "route ReactionAdd/ReactionRemove messages")
	flags.Duration("sync-interval", 30*time.Second, "interval between periodic sync attempts with known peers")

	for _, name := range []string{"datadir", "in-memory", "listen-addr", "http-addr", "grpc-addr", "loglevel", "feature-reactions", "sync-interval"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func loadConfig() Config {
	return Config{
		DataDir:          viper.GetString("datadir"),
		InMemory:         viper.GetBool("in-memory"),
		ListenAddr:       viper.GetString("listen-addr"),
		HTTPAddr:         viper.GetString("http-addr"),
		GRPCAddr:         viper.GetString("grpc-addr"),
		LogLevel:         viper.GetString("loglevel"),
		FeatureReactions: viper.GetBool("feature-reactions"),
		SyncInterval:     viper.GetDuration("sync-interval"),
	}
}
