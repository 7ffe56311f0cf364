// Package coordination is a thin typed facade over the strongly-consistent
// hierarchical namespace the core assumes (design spec §4.C), backed by
// ZooKeeper via github.com/samuel/go-zookeeper/zk for every znode
// read/write/create operation. github.com/wvanbergen/kazoo-go was evaluated
// (it pairs with go-zookeeper in the kafka-pixy-derived examples in the
// retrieval pack) but its Topic/Consumergroup/ConsumergroupInstance
// abstractions assume the canonical Kafka ZK layout (/brokers/topics/...,
// /consumers/<group>/...), which this namespace does not use — broker
// addresses, partition leaders, and consumer offsets here live under the
// custom paths in paths.go. Bending that layout to fit kazoo-go's
// conventions would mean adopting Kafka's own broker/topic metadata format,
// which is out of scope, so every operation below goes straight through
// zk.Conn. Leader election and ephemeral-node lifecycle are properties of
// ZooKeeper itself, not of this client.
package coordination

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/samuel/go-zookeeper/zk"

	"example.com/deps/internal/mqerr"
)

// Client is the facade described in design spec §4.C.
type Client struct {
	conn   *zk.Conn
	logger log.Logger
}

// Dial connects to the ZooKeeper ensemble at servers.
func Dial(servers []string, sessionTimeout time.Duration, logger log.Logger) (*Client, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, mqerr.Wrap(mqerr.Backend, err, "connect to coordination service")
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.conn.Close()
}

// EnsurePath idempotently creates p and every missing ancestor.
func (c *Client) EnsurePath(p string) error {
	if p == "" || p == "/" {
		return nil
	}
	exists, _, err := c.conn.Exists(p)
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "check path exists: "+p)
	}
	if exists {
		return nil
	}

	parent := p[:strings.LastIndex(p, "/")]
	if err := c.EnsurePath(parent); err != nil {
		return err
	}

	_, err = c.conn.Create(p, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return mqerr.Wrap(mqerr.Backend, err, "create path: "+p)
	}
	return nil
}

// CreateTopic persists topic metadata under /topics/<name> and creates
// /topics/<name>/<i> for each partition.
func (c *Client) CreateTopic(name string, partitions, retentionMs, replicationFactor int) error {
	if err := c.EnsurePath("/topics"); err != nil {
		return err
	}

	meta := TopicMetadata{Partitions: partitions, RetentionMs: retentionMs, ReplicationFactor: replicationFactor}
	_, err := c.conn.Create(topicPath(name), meta.encode(), 0, zk.WorldACL(zk.PermAll))
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "create topic node: "+name)
	}

	for i := 0; i < partitions; i++ {
		if _, err := c.conn.Create(partitionNodePath(name, i), nil, 0, zk.WorldACL(zk.PermAll)); err != nil {
			return mqerr.Wrap(mqerr.Backend, err, "create partition node")
		}
	}
	return nil
}

// ListPartitions returns the partition IDs registered under topic.
func (c *Client) ListPartitions(topic string) ([]int, error) {
	children, _, err := c.conn.Children(topicPath(topic))
	if err != nil {
		if err == zk.ErrNoNode {
			return nil, mqerr.Wrap(mqerr.NotFound, err, "topic not found: "+topic)
		}
		return nil, mqerr.Wrap(mqerr.Backend, err, "list partitions")
	}
	ids := make([]int, 0, len(children))
	for _, child := range children {
		id, err := strconv.Atoi(child)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetTopicMetadata returns the decoded blob persisted under /topics/<name>.
func (c *Client) GetTopicMetadata(topic string) (TopicMetadata, error) {
	data, _, err := c.conn.Get(topicPath(topic))
	if err != nil {
		if err == zk.ErrNoNode {
			return TopicMetadata{}, mqerr.Wrap(mqerr.NotFound, err, "topic not found: "+topic)
		}
		return TopicMetadata{}, mqerr.Wrap(mqerr.Backend, err, "get topic metadata")
	}
	return decodeTopicMetadata(data)
}

// RegisterBroker creates an ephemeral /brokers/<broker_id> node holding
// address. The node (and therefore the registration) expires with the ZK
// session on broker death.
func (c *Client) RegisterBroker(brokerID, address string) error {
	if err := c.EnsurePath("/brokers"); err != nil {
		return err
	}
	_, err := c.conn.Create(brokerPath(brokerID), []byte(address), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		// Broker restarted before its prior ephemeral node expired; treat
		// re-registration as an update rather than a conflict.
		_, stat, getErr := c.conn.Get(brokerPath(brokerID))
		if getErr != nil {
			return mqerr.Wrap(mqerr.Backend, getErr, "re-register broker")
		}
		_, err = c.conn.Set(brokerPath(brokerID), []byte(address), stat.Version)
	}
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "register broker")
	}
	level.Info(c.logger).Log("msg", "broker registered", "broker_id", brokerID, "address", address)
	return nil
}

// DeregisterBroker removes the broker's ephemeral registration, used during
// an orderly Shutdown (design spec §4.B).
func (c *Client) DeregisterBroker(brokerID string) error {
	err := c.conn.Delete(brokerPath(brokerID), -1)
	if err != nil && err != zk.ErrNoNode {
		return mqerr.Wrap(mqerr.Backend, err, "deregister broker")
	}
	return nil
}

// ResolveBroker returns the host:port currently registered for brokerID.
func (c *Client) ResolveBroker(brokerID string) (string, error) {
	data, _, err := c.conn.Get(brokerPath(brokerID))
	if err != nil {
		if err == zk.ErrNoNode {
			return "", mqerr.Wrap(mqerr.NotFound, err, "unknown broker: "+brokerID)
		}
		return "", mqerr.Wrap(mqerr.Backend, err, "resolve broker")
	}
	return string(data), nil
}

// SetPartitionLeader records which broker leads (topic, partition).
func (c *Client) SetPartitionLeader(topic string, partition int32, brokerID string) error {
	path := leaderPath(topic, partition)
	if err := c.EnsurePath(path[:strings.LastIndex(path, "/")]); err != nil {
		return err
	}
	exists, stat, err := c.conn.Exists(path)
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "check leader node")
	}
	if !exists {
		_, err = c.conn.Create(path, []byte(brokerID), 0, zk.WorldACL(zk.PermAll))
	} else {
		_, err = c.conn.Set(path, []byte(brokerID), stat.Version)
	}
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "set partition leader")
	}
	return nil
}

// GetPartitionLeader returns the broker_id currently leading (topic, partition).
func (c *Client) GetPartitionLeader(topic string, partition int32) (string, error) {
	data, _, err := c.conn.Get(leaderPath(topic, partition))
	if err != nil {
		if err == zk.ErrNoNode {
			return "", mqerr.Wrap(mqerr.NotFound, err, "no leader for partition")
		}
		return "", mqerr.Wrap(mqerr.Backend, err, "get partition leader")
	}
	return string(data), nil
}

// SetConsumerOffset persists the committed offset for (group, topic, partition).
func (c *Client) SetConsumerOffset(groupID, topic string, partition int32, offset int64) error {
	path := offsetPath(groupID, topic, partition)
	if err := c.EnsurePath(path[:strings.LastIndex(path, "/")]); err != nil {
		return err
	}
	data := []byte(strconv.FormatInt(offset, 10))
	exists, stat, err := c.conn.Exists(path)
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "check offset node")
	}
	if !exists {
		_, err = c.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll))
	} else {
		_, err = c.conn.Set(path, data, stat.Version)
	}
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "set consumer offset")
	}
	return nil
}

// GetConsumerOffset returns the last committed offset for (group, topic, partition).
func (c *Client) GetConsumerOffset(groupID, topic string, partition int32) (int64, error) {
	data, _, err := c.conn.Get(offsetPath(groupID, topic, partition))
	if err != nil {
		if err == zk.ErrNoNode {
			return 0, mqerr.Wrap(mqerr.NotFound, err, "no committed offset")
		}
		return 0, mqerr.Wrap(mqerr.Backend, err, "get consumer offset")
	}
	offset, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, mqerr.Wrap(mqerr.Backend, err, "malformed offset node")
	}
	return offset, nil
}

// AssignPartition records that consumerID owns (topic, partition) within
// groupID, overwriting any existing owner. It does not check for a
// conflicting owner; consumergroup.Group tracks ownership locally and does
// not call it.
func (c *Client) AssignPartition(groupID, topic string, partition int32, consumerID string) error {
	path := consumerPath(groupID, topic, partition)
	if err := c.EnsurePath(path[:strings.LastIndex(path, "/")]); err != nil {
		return err
	}
	exists, stat, err := c.conn.Exists(path)
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "check consumer node")
	}
	if !exists {
		_, err = c.conn.Create(path, []byte(consumerID), 0, zk.WorldACL(zk.PermAll))
	} else {
		_, err = c.conn.Set(path, []byte(consumerID), stat.Version)
	}
	if err != nil {
		return mqerr.Wrap(mqerr.Backend, err, "assign partition")
	}
	return nil
}

// GetOwner returns the consumer_id currently owning (topic, partition)
// within groupID.
func (c *Client) GetOwner(groupID, topic string, partition int32) (string, error) {
	data, _, err := c.conn.Get(consumerPath(groupID, topic, partition))
	if err != nil {
		if err == zk.ErrNoNode {
			return "", mqerr.Wrap(mqerr.NotFound, err, "no owner for partition")
		}
		return "", mqerr.Wrap(mqerr.Backend, err, "get owner")
	}
	return string(data), nil
}

// ReleasePartition clears the ownership record for (topic, partition) within
// groupID. consumergroup.Group.RemoveConsumer releases ownership locally and
// does not call it.
func (c *Client) ReleasePartition(groupID, topic string, partition int32) error {
	err := c.conn.Delete(consumerPath(groupID, topic, partition), -1)
	if err != nil && err != zk.ErrNoNode {
		return mqerr.Wrap(mqerr.Backend, err, "release partition")
	}
	return nil
}
