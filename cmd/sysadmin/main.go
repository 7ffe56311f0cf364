package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"example.com/deps/internal/mqpb"
	"example.com/deps/internal/router"
)

// sys_admin_client <bootstrap...> prompts for a broker_id to shut down,
// reissuing the Shutdown RPC against the redirect address on a mismatch,
// grounded on original_source/sys_admin/sys_admin.cc.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sys_admin_client <bootstrap...>")
		os.Exit(1)
	}
	bootstrap := os.Args[1:]

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	r, err := router.New(bootstrap, log.With(logger, "component", "router"), router.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		level.Error(logger).Log("msg", "failed to reach any bootstrap broker", "err", err)
		os.Exit(1)
	}
	defer r.Close()

	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter Broker ID to shutdown or type 'exit' to quit: ")
		if !stdin.Scan() {
			break
		}
		brokerID := strings.TrimSpace(stdin.Text())
		if brokerID == "exit" {
			break
		}

		if shutdownBroker(context.Background(), r, brokerID) {
			fmt.Println("Broker shutdown successfully.")
		} else {
			fmt.Println("Failed to shutdown broker.")
		}
	}
}

// shutdownBroker resolves broker_id's address, issues Shutdown, and on a
// non-matching response (WrongBroker-style redirect) reissues once against
// the address the broker returned.
func shutdownBroker(ctx context.Context, r *router.Router, brokerID string) bool {
	addr, err := r.GetBrokerAddressByID(ctx, brokerID)
	if err != nil {
		return false
	}

	resp, err := issueShutdown(ctx, addr, brokerID)
	if err != nil {
		return false
	}
	if resp.Success {
		return true
	}
	if resp.BrokerAddress == "" {
		return false
	}

	redirectResp, err := issueShutdown(ctx, resp.BrokerAddress, brokerID)
	if err != nil {
		return false
	}
	return redirectResp.Success
}

func issueShutdown(ctx context.Context, addr, brokerID string) (*mqpb.ShutdownResponse, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	client := mqpb.NewClient(conn)
	return client.Shutdown(ctx, &mqpb.ShutdownRequest{BrokerID: brokerID})
}
