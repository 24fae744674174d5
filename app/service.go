package app

import (
	"context"
	"fmt"

	"github.com/sillyfrog/tesla-mqtt/config"
	"github.com/sillyfrog/tesla-mqtt/core/bridge"
	"github.com/sillyfrog/tesla-mqtt/core/geo"
	coremetrics "github.com/sillyfrog/tesla-mqtt/core/metrics"
	coretesla "github.com/sillyfrog/tesla-mqtt/core/tesla"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
	"github.com/sillyfrog/tesla-mqtt/infra/metrics"
	"github.com/sillyfrog/tesla-mqtt/infra/mqtt"
	"github.com/sillyfrog/tesla-mqtt/infra/tesla"
)

// Service wires the MQTT client, the vehicle connector and the bridge
// supervisor together.
type Service struct {
	supervisor  *bridge.Supervisor
	client      *mqtt.Client
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetDebug(cfg.Debug)
	logg := logger.New("service")

	queue := bridge.NewCommandQueue()
	handler := mqtt.CommandHandler(queue, logger.New("mqtt_handler"))
	client, err := mqtt.NewClient(cfg.MQTT, cfg.Bridge.BaseTopic+"/+/set", handler)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	home, err := cfg.Bridge.HomePoint()
	if err != nil {
		return nil, err
	}

	publisher := bridge.NewChangePublisher(client, cfg.Bridge.BaseTopic, logger.New("publisher"))
	engine := bridge.NewEngine(cfg.Bridge, queue, publisher, geo.Classifier{Home: home}, sink, logger.New("engine"))
	discovery := bridge.NewDiscovery(client, cfg.Bridge.BaseTopic, cfg.Bridge.DiscoveryPrefix, logger.New("discovery"))

	var connector coretesla.Connector = tesla.NewConnector(cfg.Tesla)
	supervisor := bridge.NewSupervisor(cfg.Bridge, connector, queue, engine, discovery, sink, logger.New("supervisor"))

	return &Service{
		supervisor:  supervisor,
		client:      client,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the bridge and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.supervisor.Run(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.client.Close()
	return nil
}
