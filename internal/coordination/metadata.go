package coordination

import (
	"fmt"
	"strconv"
	"strings"

	"example.com/deps/internal/mqerr"
)

// TopicMetadata is the opaque-to-the-core blob persisted under
// /topics/<name> (design spec §6): "partitions:N,retention:R,replicas:K".
type TopicMetadata struct {
	Partitions        int
	RetentionMs       int
	ReplicationFactor int
}

func (m TopicMetadata) encode() []byte {
	return []byte(fmt.Sprintf("partitions:%d,retention:%d,replicas:%d",
		m.Partitions, m.RetentionMs, m.ReplicationFactor))
}

func decodeTopicMetadata(data []byte) (TopicMetadata, error) {
	var m TopicMetadata
	fields := strings.Split(string(data), ",")
	if len(fields) != 3 {
		return m, mqerr.New(mqerr.Backend, "malformed topic metadata blob: "+string(data))
	}
	for _, f := range fields {
		kv := strings.SplitN(f, ":", 2)
		if len(kv) != 2 {
			return m, mqerr.New(mqerr.Backend, "malformed topic metadata field: "+f)
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return m, mqerr.Wrap(mqerr.Backend, err, "malformed topic metadata value")
		}
		switch kv[0] {
		case "partitions":
			m.Partitions = n
		case "retention":
			m.RetentionMs = n
		case "replicas":
			m.ReplicationFactor = n
		}
	}
	return m, nil
}
