package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdsapp/pds/config"
	"github.com/redis/go-redis/v9"
)

// redisOptions maps config onto UniversalOptions. The returned description is
// safe to log: it never carries credentials.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	opts, desc, err := topologyOptions(cfg)
	if err != nil {
		return nil, "", err
	}
	opts.DialTimeout = cfg.DialTimeout
	return opts, desc, nil
}

func topologyOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case cfg.UseCluster:
		return clusterOptions(cfg)
	case cfg.UseSentinel:
		nodes := trimAll(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return &redis.UniversalOptions{
			Addrs:            nodes,
			MasterName:       cfg.SentinelMasterName,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}, "sentinel:" + cfg.SentinelMasterName, nil
	default:
		return directOptions(cfg)
	}
}

func clusterOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	opts := &redis.UniversalOptions{
		Addrs:         trimAll(cfg.ClusterNodes),
		Password:      cfg.Password,
		IsClusterMode: true,
	}
	if len(opts.Addrs) == 0 {
		// a single configuration endpoint given as REDIS_URI
		direct, _, err := directOptions(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("redis cluster configuration requires at least one address: %w", err)
		}
		opts.Addrs = direct.Addrs
		opts.Username = direct.Username
		opts.Password = direct.Password
		opts.TLSConfig = direct.TLSConfig
	}
	return opts, "cluster:" + strings.Join(opts.Addrs, ","), nil
}

// directOptions accepts either host:port or a redis:// / rediss:// URL.
func directOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis configuration requires REDIS_URI")
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redis.UniversalOptions{Addrs: []string{uri}, Password: cfg.Password}, uri, nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parse redis url: %w", err)
	}
	password := parsed.Password
	if password == "" {
		password = cfg.Password
	}
	return &redis.UniversalOptions{
		Addrs:     []string{parsed.Addr},
		Username:  parsed.Username,
		Password:  password,
		DB:        parsed.DB,
		TLSConfig: parsed.TLSConfig,
	}, parsed.Addr, nil
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
