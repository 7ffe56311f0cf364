package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"example.com/deps/internal/broker"
	"example.com/deps/internal/coordination"
	"example.com/deps/internal/mqpb"
)

func main() {
	brokerID := flag.String("broker-id", "", "Unique broker identifier (defaults to a random UUID)")
	address := flag.String("address", "localhost:7000", "Address this broker advertises to clients")
	listenAddr := flag.String("listen", ":7000", "Address to bind the gRPC server to")
	dataDir := flag.String("data-dir", "./data", "Directory to store partition logs and metadata cache")
	zkServers := flag.String("zk-servers", "localhost:2181", "Comma-separated ZooKeeper ensemble")
	zkSessionTimeout := flag.Duration("zk-session-timeout", 10*time.Second, "ZooKeeper session timeout")
	flag.Parse()

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if *brokerID == "" {
		generated := uuid.NewString()
		brokerID = &generated
		level.Info(logger).Log("msg", "no broker-id given, generated one", "broker_id", *brokerID)
	}

	coord, err := coordination.Dial(strings.Split(*zkServers, ","), *zkSessionTimeout, log.With(logger, "component", "coordination"))
	if err != nil {
		level.Error(logger).Log("msg", "failed to dial coordination service", "err", err)
		os.Exit(1)
	}
	defer coord.Close()

	reg := prometheus.NewRegistry()
	metrics := broker.NewMetrics(reg)

	svc := broker.NewService(*brokerID, *address, *dataDir, coord, metrics, log.With(logger, "component", "broker"))
	grpcSrv := broker.NewGRPCServer(svc)

	startCtx := context.Background()
	if err := svc.Start(startCtx); err != nil {
		level.Error(logger).Log("msg", "broker failed to start", "err", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		level.Error(logger).Log("msg", "failed to bind listener", "addr", *listenAddr, "err", err)
		os.Exit(1)
	}

	server := grpc.NewServer()
	mqpb.RegisterServer(server, grpcSrv)

	lifecycle := services.NewBasicService(
		nil,
		func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- server.Serve(lis) }()
			select {
			case <-ctx.Done():
				return nil
			case <-svc.ShutdownRequested():
				server.GracefulStop()
				return nil
			case err := <-errCh:
				return err
			}
		},
		func(_ error) error {
			return svc.Stop(context.Background())
		},
	)

	level.Info(logger).Log("msg", "broker listening", "broker_id", *brokerID, "listen", *listenAddr, "advertised", *address)

	ctx := context.Background()
	if err := services.StartAndAwaitRunning(ctx, lifecycle); err != nil {
		level.Error(logger).Log("msg", "broker service failed to start", "err", err)
		os.Exit(1)
	}
	if err := lifecycle.AwaitTerminated(ctx); err != nil {
		level.Error(logger).Log("msg", "broker terminated with error", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
