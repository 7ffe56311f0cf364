package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"example.com/deps/internal/consumer"
	"example.com/deps/internal/consumergroup"
	"example.com/deps/internal/router"
)

// cgEntry is one line of the cg_config file: "<tag> <gid> <consumer_id> <topic> <partition>".
type cgEntry struct {
	tag        string
	groupID    string
	consumerID string
	topic      string
	partition  int32
}

func loadCGConfig(path string) ([]cgEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []cgEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed cg_config line: %q", line)
		}
		partition, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("invalid partition in cg_config line: %q", line)
		}
		entries = append(entries, cgEntry{
			tag: fields[0], groupID: fields[1], consumerID: fields[2],
			topic: fields[3], partition: int32(partition),
		})
	}
	return entries, scanner.Err()
}

// consumer_client <bootstrap...> reads cg_config, prompts for tag/topic/partition/max_messages.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: consumer_client <bootstrap...>")
		os.Exit(1)
	}
	bootstrap := os.Args[1:]

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	entries, err := loadCGConfig("cg_config")
	if err != nil {
		level.Error(logger).Log("msg", "failed to read cg_config", "err", err)
		os.Exit(1)
	}

	r, err := router.New(bootstrap, log.With(logger, "component", "router"), router.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		level.Error(logger).Log("msg", "failed to reach any bootstrap broker", "err", err)
		os.Exit(1)
	}
	defer r.Close()

	stdin := bufio.NewScanner(os.Stdin)
	tag := prompt(stdin, "tag: ")

	var claims []consumergroup.PartitionClaim
	var groupID, consumerID string
	for _, e := range entries {
		if e.tag != tag {
			continue
		}
		groupID, consumerID = e.groupID, e.consumerID
		claims = append(claims, consumergroup.PartitionClaim{Topic: e.topic, Partition: e.partition, InitialOffset: 0})
	}
	if len(claims) == 0 {
		level.Error(logger).Log("msg", "no cg_config entry matches tag", "tag", tag)
		os.Exit(1)
	}

	group := consumergroup.New(groupID, func(gid string) consumergroup.Fetcher {
		return consumer.New(gid, r, log.With(logger, "component", "consumer"))
	}, nil, log.With(logger, "component", "consumergroup"))

	ok, err := group.AddConsumer(consumerID, claims)
	if err != nil || !ok {
		level.Error(logger).Log("msg", "failed to join consumer group", "err", err)
		os.Exit(1)
	}

	fmt.Println("enter \"<topic> <partition> <max_messages>\", or \"exit\" to quit")
	for {
		line := prompt(stdin, "> ")
		if line == "exit" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			fmt.Fprintln(os.Stderr, "expected \"<topic> <partition> <max_messages>\"")
			continue
		}
		partition, err1 := strconv.Atoi(fields[1])
		max, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			fmt.Fprintln(os.Stderr, "invalid partition or max_messages")
			continue
		}

		recs, err := group.Consume(context.Background(), fields[0], int32(partition), max)
		if err != nil {
			level.Error(logger).Log("msg", "consume failed", "err", err)
			continue
		}
		for _, rec := range recs {
			fmt.Printf("offset=%d key=%s value=%s\n", rec.Offset, rec.Key, rec.Value)
		}
	}

	group.RemoveConsumer(consumerID)
}

func prompt(s *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !s.Scan() {
		return "exit"
	}
	return strings.TrimSpace(s.Text())
}
