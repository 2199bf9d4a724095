package main

import (
	"fmt"
	"os"
	"time"

	"github.com/palich2000/module-dhcpd"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk pool description, loaded with -c and merged
// with -a/-o/-p/-s flag overrides before the pool is built.
type fileConfig struct {
	InterfaceName string              `yaml:"interface_name"`
	ServerID      string              `yaml:"server_id"`
	RangeStart    string              `yaml:"range_start"`
	RangeEnd      string              `yaml:"range_end"`
	LeaseDuration uint32              `yaml:"lease_duration"`
	PendingMillis uint32              `yaml:"pending_time_msec"`
	ICMPTimeout   uint32              `yaml:"icmp_timeout_msec"`
	Options       []optionConfig      `yaml:"options"`
	StaticLeases  []staticLeaseConfig `yaml:"static_leases"`
}

type optionConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type staticLeaseConfig struct {
	MAC string `yaml:"mac"`
	IP  string `yaml:"ip"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	var c fileConfig
	if err = yaml.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &c, nil
}

// buildPool applies the file config, then option/static-binding overrides
// (already parsed from repeatable flags), to a fresh Pool.
func buildPool(c *fileConfig, extraOptions []optionConfig, extraStatic []staticLeaseConfig) (*dhcpd.Pool, error) {
	p := dhcpd.NewPool()

	if c.ServerID == "" {
		return nil, fmt.Errorf("server_id is required")
	}
	if err := p.SetServerID(c.ServerID); err != nil {
		return nil, err
	}

	if c.RangeStart != "" && c.RangeEnd != "" {
		if err := p.SetRange(c.RangeStart, c.RangeEnd); err != nil {
			return nil, err
		}
	}

	if c.PendingMillis > 0 {
		p.SetPendingTime(time.Duration(c.PendingMillis) * time.Millisecond)
	} else {
		p.SetPendingTime(60 * time.Second)
	}

	for _, o := range append(c.Options, extraOptions...) {
		if err := p.AddOption(o.Name, o.Value); err != nil {
			return nil, err
		}
	}

	if c.LeaseDuration > 0 {
		if err := p.AddOption("IP_ADDRESS_LEASE_TIME", fmt.Sprint(c.LeaseDuration)); err != nil {
			return nil, err
		}
	}

	for _, s := range append(c.StaticLeases, extraStatic...) {
		if err := p.AddStaticBinding(s.MAC, s.IP); err != nil {
			return nil, err
		}
	}

	if err := p.ApplyDefaults(); err != nil {
		return nil, err
	}

	if c.ICMPTimeout > 0 {
		p.Prober = dhcpd.NewICMPProber()
		p.ProbeTimeout = time.Duration(c.ICMPTimeout) * time.Millisecond
	}

	return p, nil
}
