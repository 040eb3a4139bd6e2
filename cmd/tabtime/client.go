package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/goodtune/tabtime/internal/client"
	"github.com/goodtune/tabtime/internal/config"
)

// newClient returns an API client for --server, or for the address the
// configured server listens on.
func newClient() (*client.Client, error) {
	if serverURL != "" {
		return client.New(serverURL), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	host := cfg.Server.BindAddress
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return client.New("http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))), nil
}
