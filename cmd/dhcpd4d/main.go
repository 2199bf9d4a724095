// Command dhcpd4d runs a standalone DHCPv4 server against one network
// interface, mirroring the -a/-d/-o/-p/-s option set of the Zephyr module
// this server's binding engine and option codec were modeled on.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/palich2000/module-dhcpd"
)

func main() {
	var (
		configPath  = flag.String("c", "", "path to a YAML pool configuration file")
		ifaceName   = flag.String("d", "", "network interface to serve on")
		rangeFlag   = flag.String("a", "", "dynamic address range, first,last")
		optionFlags = repeatedFlag{}
		staticFlags = repeatedFlag{}
		pendingMs   = flag.Uint("p", 0, "pending binding time in milliseconds")
		skipProbe   = flag.Bool("no-probe", false, "skip the other-server presence check before starting")
	)
	flag.Var(&optionFlags, "o", "dhcp option, name,value (repeatable)")
	flag.Var(&staticFlags, "s", "static binding, mac,ip (repeatable)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <server-address>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(64)
	}
	serverAddr := flag.Arg(0)

	var fc fileConfig
	if *configPath != "" {
		loaded, err := loadFileConfig(*configPath)
		if err != nil {
			log.Fatalf("dhcpd4d: %s", err)
		}
		fc = *loaded
	}
	fc.ServerID = serverAddr
	if *ifaceName != "" {
		fc.InterfaceName = *ifaceName
	}
	if *rangeFlag != "" {
		first, last, ok := splitPair(*rangeFlag)
		if !ok {
			log.Fatalf("dhcpd4d: -a requires first,last")
		}
		fc.RangeStart, fc.RangeEnd = first, last
	}
	if *pendingMs > 0 {
		fc.PendingMillis = uint32(*pendingMs)
	}

	extraOptions := make([]optionConfig, 0, len(optionFlags))
	for _, raw := range optionFlags {
		name, value, ok := splitPair(raw)
		if !ok {
			log.Fatalf("dhcpd4d: -o requires name,value: %q", raw)
		}
		extraOptions = append(extraOptions, optionConfig{Name: name, Value: value})
	}

	extraStatic := make([]staticLeaseConfig, 0, len(staticFlags))
	for _, raw := range staticFlags {
		mac, ip, ok := splitPair(raw)
		if !ok {
			log.Fatalf("dhcpd4d: -s requires mac,ip: %q", raw)
		}
		extraStatic = append(extraStatic, staticLeaseConfig{MAC: mac, IP: ip})
	}

	pool, err := buildPool(&fc, extraOptions, extraStatic)
	if err != nil {
		log.Fatalf("dhcpd4d: %s", err)
	}

	if !*skipProbe && fc.InterfaceName != "" {
		present, perr := dhcpd.DetectOtherServer(fc.InterfaceName, 3*time.Second)
		if perr != nil {
			log.Error("dhcpd4d: checking for other servers: %s", perr)
		} else if present {
			log.Fatalf("dhcpd4d: another DHCP server is already active on %s", fc.InterfaceName)
		}
	}

	srv := &dhcpd.Server{Pool: pool}

	log.Info("dhcpd4d: starting on %s", fc.InterfaceName)
	if err = srv.Start(context.Background(), fc.InterfaceName); err != nil {
		log.Fatalf("dhcpd4d: %s", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("dhcpd4d: shutting down")
	srv.Stop()
}

// repeatedFlag accumulates -o/-s occurrences, one raw token per occurrence
// on the command line, matching getopt's repeatable-option semantics.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return strings.Join(*r, ";") }

func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func splitPair(s string) (string, string, bool) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
