// Package config parses the server's command-line flags into a Config
// value, matching the flag surface of the source's argparse setup.
package config

import (
	"flag"
	"fmt"
)

// Config is the immutable server configuration produced by Parse.
type Config struct {
	Host       string
	Port       int
	Dir        string
	DBFilename string

	// ReplicaOf is nil for a primary, or the "host port" of the primary to
	// replicate from when --replicaof was given.
	ReplicaOf *ReplicaOf
}

// ReplicaOf names the upstream primary a replica connects to.
type ReplicaOf struct {
	Host string
	Port int
}

// IsReplica reports whether this configuration runs the server as a
// replica.
func (c Config) IsReplica() bool {
	return c.ReplicaOf != nil
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("toy-redis-server", flag.ContinueOnError)

	host := fs.String("host", "127.0.0.1", "address to bind to")
	port := fs.Int("port", 6379, "port to listen on")
	dir := fs.String("dir", "", "directory holding the RDB file")
	dbfilename := fs.String("dbfilename", "", "RDB filename")
	replicaof := fs.String("replicaof", "", "\"<MASTER_HOST> <MASTER_PORT>\": run as a replica of the given primary")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Host:       *host,
		Port:       *port,
		Dir:        *dir,
		DBFilename: *dbfilename,
	}

	if *replicaof != "" {
		var masterHost string
		var masterPort int
		if _, err := fmt.Sscanf(*replicaof, "%s %d", &masterHost, &masterPort); err != nil {
			return Config{}, fmt.Errorf("config: invalid --replicaof %q: %w", *replicaof, err)
		}
		cfg.ReplicaOf = &ReplicaOf{Host: masterHost, Port: masterPort}
	}

	return cfg, nil
}
