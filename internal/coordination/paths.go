package coordination

import "fmt"

// Znode layout (design spec §6):
//
//	/topics/<t>                         metadata blob: "partitions:N,retention:R,replicas:K"
//	/topics/<t>/<i>                     per-partition node
//	/brokers/<broker_id>                ephemeral: "host:port"
//	/partitions/<t>/<i>/leader          "broker_id"
//	/consumers/<gid>/<t>/<i>/consumer   "consumer_id"
//	/consumers/<gid>/<t>/<i>/offset     "<int64>"

func topicPath(topic string) string {
	return fmt.Sprintf("/topics/%s", topic)
}

func partitionNodePath(topic string, partition int) string {
	return fmt.Sprintf("/topics/%s/%d", topic, partition)
}

func brokerPath(brokerID string) string {
	return fmt.Sprintf("/brokers/%s", brokerID)
}

func leaderPath(topic string, partition int32) string {
	return fmt.Sprintf("/partitions/%s/%d/leader", topic, partition)
}

func consumerPath(groupID, topic string, partition int32) string {
	return fmt.Sprintf("/consumers/%s/%s/%d/consumer", groupID, topic, partition)
}

func offsetPath(groupID, topic string, partition int32) string {
	return fmt.Sprintf("/consumers/%s/%s/%d/offset", groupID, topic, partition)
}
