package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"example.com/deps/internal/producer"
	"example.com/deps/internal/router"
)

// producer_client <bootstrap...> prompts for producer id, flush threshold,
// flush interval, and topic, then reads key/value pairs until "exit".
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: producer_client <bootstrap...>")
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

	producerID := prompt(stdin, "producer id (blank for random): ")
	if producerID == "" {
		producerID = uuid.NewString()
		fmt.Printf("assigned producer id: %s\n", producerID)
	}
	threshold, err := strconv.Atoi(prompt(stdin, "flush threshold: "))
	if err != nil || threshold <= 0 {
		fmt.Fprintln(os.Stderr, "invalid flush threshold")
		os.Exit(1)
	}
	intervalMs, err := strconv.Atoi(prompt(stdin, "flush interval (ms): "))
	if err != nil || intervalMs <= 0 {
		fmt.Fprintln(os.Stderr, "invalid flush interval")
		os.Exit(1)
	}
	topic := prompt(stdin, "topic: ")

	metrics := producer.NewMetrics(prometheus.NewRegistry())
	batcher := producer.New(producerID, r, threshold, time.Duration(intervalMs)*time.Millisecond, metrics, log.With(logger, "component", "producer"))
	ticker := batcher.StartPeriodicFlush()
	if err := ticker.StartAsync(context.Background()); err != nil {
		level.Error(logger).Log("msg", "failed to start flush ticker", "err", err)
		os.Exit(1)
	}

	fmt.Println("enter \"<key> <value>\" pairs, or \"exit\" to quit")
	for {
		line := prompt(stdin, "> ")
		if line == "exit" {
			break
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			fmt.Fprintln(os.Stderr, "expected \"<key> <value>\"")
			continue
		}

		ok, err := batcher.Produce(context.Background(), []byte(parts[0]), []byte(parts[1]), topic)
		if err != nil {
			level.Error(logger).Log("msg", "produce failed", "err", err)
			continue
		}
		if !ok {
			fmt.Println("produce rejected")
		}
	}

	ticker.StopAsync()
	if err := ticker.AwaitTerminated(context.Background()); err != nil {
		level.Warn(logger).Log("msg", "flush ticker stop error", "err", err)
	}
	if err := batcher.Close(context.Background()); err != nil {
		level.Warn(logger).Log("msg", "final flush error", "err", err)
	}
}

func prompt(s *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !s.Scan() {
		return "exit"
	}
	return strings.TrimSpace(s.Text())
}
