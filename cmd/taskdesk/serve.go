package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	consulsd "github.com/go-kit/kit/sd/consul"
	consul "github.com/hashicorp/consul/api"
	"github.com/ichigozero/taskdesk/authsvc/inmem"
	"github.com/ichigozero/taskdesk/config"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/ichigozero/taskdesk/notifysvc/broker"
	"github.com/ichigozero/taskdesk/notifysvc/hub"
	"github.com/oklog/oklog/pkg/group"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/twinj/uuid"
)

const hubBuffer = 16

var (
	httpAddr   string
	consulAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if httpAddr != "" {
			cfg.HTTPAddr = httpAddr
		}
		if consulAddr != "" {
			cfg.ConsulAddr = consulAddr
		}
		return serve(cmd.Context(), cfg, newLogger())
	},
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "http.addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().StringVar(&consulAddr, "consul.addr", "", "Consul agent address (overrides CONSUL_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, logger log.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := seed(ctx, db, cfg.Admin); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	var consulClient *consul.Client
	if cfg.ConsulAddr != "" || cfg.TokenStore.Kind == "consul" {
		consulConfig := consul.DefaultConfig()
		if cfg.ConsulAddr != "" {
			consulConfig.Address = cfg.ConsulAddr
		}
		if consulClient, err = consul.NewClient(consulConfig); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.TokenStore.Kind == "redis" || cfg.Broker.Kind == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	tokens, err := newTokenStore(cfg.TokenStore.Kind, rdb, consulClient)
	if err != nil {
		return err
	}

	backend, err := newBroker(cfg.Broker, rdb)
	if err != nil {
		return err
	}

	instruments := newInstruments()
	h := hub.New(hubBuffer, instruments.subscribers, instruments.dropped, log.With(logger, "component", "hub"))

	var publisher notifysvc.Publisher = h
	if backend != nil {
		publisher = broker.NewPublisher(backend, cfg.Broker.Channel)
	}

	a := app{
		db:          db,
		jwt:         cfg.JWT,
		login:       cfg.Login,
		tokens:      tokens,
		hub:         h,
		publisher:   publisher,
		instruments: instruments,
		logger:      logger,
	}

	if consulClient != nil && cfg.ConsulAddr != "" {
		registrar, err := newRegistrar(consulClient, cfg.HTTPAddr, logger)
		if err != nil {
			return err
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	var g group.Group
	{
		server := &http.Server{Addr: cfg.HTTPAddr, Handler: a.handler()}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}
	if backend != nil {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			logger.Log("broker", cfg.Broker.Kind, "channel", cfg.Broker.Channel)
			return broker.Relay(ctx, backend, cfg.Broker.Channel, h, log.With(logger, "component", "relay"))
		}, func(error) {
			cancel()
			backend.Close()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}

	logger.Log("exit", g.Run())
	return nil
}

func newTokenStore(kind string, rdb *redis.Client, consulClient *consul.Client) (inmem.Client, error) {
	switch kind {
	case "", "memory":
		return inmem.NewMemoryClient(), nil
	case "redis":
		return inmem.NewRedisClient(rdb), nil
	case "consul":
		return inmem.NewConsulClient(consulClient), nil
	}
	return nil, fmt.Errorf("unknown token store %q", kind)
}

func newBroker(cfg config.BrokerConfig, rdb *redis.Client) (broker.Backend, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return broker.NewRabbitMQ(cfg.URL)
	case "redis":
		return broker.NewRedis(rdb), nil
	}
	return nil, fmt.Errorf("unknown broker %q", cfg.Kind)
}

func newRegistrar(c *consul.Client, addr string, logger log.Logger) (*consulsd.Registrar, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	asr := &consul.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    "taskdesk",
		Address: host,
		Port:    p,
		Check: &consul.AgentServiceCheck{
			HTTP:     "http://" + net.JoinHostPort(host, port) + "/healthz",
			Interval: "10s",
			Timeout:  "2s",
		},
	}
	level.Info(logger).Log("consul", "register", "id", asr.ID)
	return consulsd.NewRegistrar(consulsd.NewClient(c), asr, logger), nil
}
