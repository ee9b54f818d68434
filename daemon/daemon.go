// Package daemon wires a running actornet node together from config:
// node identity, local actor directory, transport multiplexer, broker
// and the configured listeners and monitoring endpoints.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/actornet/actornet/broker"
	"github.com/actornet/actornet/config"
	"github.com/actornet/actornet/daemon/logging"
	"github.com/actornet/actornet/directory"
	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/node"
	"github.com/actornet/actornet/transport"
	"github.com/actornet/actornet/transport/tcp"
	"github.com/actornet/actornet/transport/tls"
	"github.com/actornet/actornet/version"
)

func Run(ctx context.Context, conf *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	outlets, err := logging.OutletsFromConfig(*conf.Global.Logging)
	if err != nil {
		return errors.Wrap(err, "cannot build logging from config")
	}
	outlets.Add(newPrometheusLogOutlet(), logger.Debug)
	log := logger.NewLogger(outlets)
	log.Info(version.NewVersionInformation().String())

	localNode, err := nodeIDFromConfig(conf)
	if err != nil {
		return err
	}
	log.WithField("node", localNode.String()).Info("node identity assigned")

	ctx = logging.WithSubsystemLoggers(ctx, log)

	dir := directory.New(localNode, logging.LogSubsystem(log, logging.SubsysDirectory))

	events := make(chan transport.Event, conf.Global.Broker.MailboxSize)
	mux := transport.NewMux(events, logging.LogSubsystem(log, logging.SubsysTransport))

	b := broker.New(broker.Params{
		LocalNode: localNode,
		Directory: dir,
		Mux:       mux,
		Events:    events,
		Log:       logging.LogSubsystem(log, logging.SubsysBroker),
	})

	registerMetrics(prometheus.DefaultRegisterer)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := b.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	for i, lc := range conf.Listen {
		lf, port, err := listenerFactoryFromConfig(&lc)
		if err != nil {
			return errors.Wrapf(err, "cannot build listener #%d", i)
		}
		if lc.Publish != nil {
			aid := node.ActorID(lc.Publish.Actor)
			if err := dir.RegisterID(aid, systemActorHandler(log, aid)); err != nil {
				return errors.Wrapf(err, "cannot register published actor for listener #%d", i)
			}
			if err := b.Publish(port, aid, lc.Publish.Signatures); err != nil {
				return errors.Wrapf(err, "cannot publish actor on listener #%d", i)
			}
		}
		l, err := lf()
		if err != nil {
			return errors.Wrapf(err, "cannot listen for listener #%d", i)
		}
		g.Go(func() error {
			err := mux.Serve(ctx, l, port)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		log.WithField("addr", l.Addr().String()).Info("listening")
	}

	for i, mc := range conf.Global.Monitoring {
		var job func(context.Context) error
		switch v := mc.Ret.(type) {
		case *config.PrometheusMonitoring:
			job, err = prometheusJobFromConfig(log, v)
		default:
			return errors.Errorf("unknown monitoring job #%d (type %T)", i, v)
		}
		if err != nil {
			return errors.Wrapf(err, "cannot build monitoring job #%d", i)
		}
		g.Go(func() error { return job(ctx) })
	}

	log.Info("daemon started")
	err = g.Wait()
	if err != nil {
		log.WithError(err).Error("daemon exiting with error")
		return err
	}
	log.Info("daemon exiting")
	return nil
}

func nodeIDFromConfig(conf *config.Config) (node.ID, error) {
	if conf.NodeID == "" {
		return node.NewID(), nil
	}
	id, err := node.ParseID(conf.NodeID)
	if err != nil {
		return node.InvalidID, errors.Wrap(err, "cannot parse node_id")
	}
	return id, nil
}

func listenerFactoryFromConfig(in *config.Listen) (transport.ListenerFactory, uint16, error) {
	switch v := in.Serve.Ret.(type) {
	case *config.TCPServe:
		return tcp.ListenerFactoryFromConfig(v)
	case *config.TLSServe:
		return tls.ListenerFactoryFromConfig(v)
	default:
		return nil, 0, errors.Errorf("unknown serve type %T", v)
	}
}

// systemActorHandler backs actors published via config. They exist so
// peers have a stable rendezvous point; incoming payloads are surfaced
// to the log until an embedding runtime registers something real.
func systemActorHandler(log logger.Logger, aid node.ActorID) directory.Handler {
	return func(src node.Address, mid node.MessageID, payload []byte) {
		log.WithField("actor", uint64(aid)).
			WithField("src", src.String()).
			WithField("bytes", len(payload)).
			Info("published actor received message")
	}
}
