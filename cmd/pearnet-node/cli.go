package main

import (
    "flag"
    "strings"
)

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    Listen     string
    Bootstrap  []string
    Username   string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("pearnet-node", flag.ExitOnError)
    var opts Options
    var boot string
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Listen, "listen", "", "Listen address or port (overrides node.listen)")
    fs.StringVar(&boot, "bootstrap", "", "Comma separated bootstrap peers, added to node.bootstrap")
    fs.StringVar(&opts.Username, "user", defaultUser(), "Name shown on sent chat lines")
    _ = fs.Parse(args)
    for _, b := range strings.Split(boot, ",") {
        if b = strings.TrimSpace(b); b != "" { opts.Bootstrap = append(opts.Bootstrap, b) }
    }
    // positional arguments are bootstrap peers too
    opts.Bootstrap = append(opts.Bootstrap, fs.Args()...)
    return opts
}
