package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/grevgeny/toy-redis-server/internal/command"
	"github.com/grevgeny/toy-redis-server/internal/config"
	"github.com/grevgeny/toy-redis-server/internal/rdb"
	"github.com/grevgeny/toy-redis-server/internal/replication"
	"github.com/grevgeny/toy-redis-server/internal/server"
	"github.com/grevgeny/toy-redis-server/internal/store"
)

func main() {
	log := logrus.New()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	st := store.New()
	defer st.Close()

	snap, err := rdb.LoadFile(cfg.Dir, cfg.DBFilename)
	if err != nil {
		log.WithError(err).Fatal("failed to load RDB snapshot")
	}
	for _, entry := range snap.Strings {
		st.LoadString(entry.Key, entry.Value, entry.ExpireAt)
	}
	log.WithField("keys", len(snap.Strings)).Info("loaded initial keyspace")

	var repl command.Replication
	var primary *replication.Primary
	if cfg.IsReplica() {
		repl = replication.ReplicaRole{}
	} else {
		primary = replication.NewPrimary(log)
		repl = primary
	}

	dispatcher := command.New(st, cfg, repl, log)
	srv := server.New(cfg.Host, cfg.Port, dispatcher, log)

	stop := make(chan struct{})
	if cfg.IsReplica() {
		replicaClient := replication.NewReplica(cfg.ReplicaOf.Host, cfg.ReplicaOf.Port, cfg.Port, dispatcher, log)
		go replicaClient.Run(stop)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		close(stop)
		if primary != nil {
			primary.Shutdown()
		}
		srv.Close()
	}()

	log.WithField("addr", cfg.Host).WithField("port", cfg.Port).Info("starting toy-redis-server")
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
