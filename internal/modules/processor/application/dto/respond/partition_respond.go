package respond

import "time"

type PartitionStatus struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Processed uint64    `json:"processed"`
	Dropped   uint64    `json:"dropped"`
}

type PartitionListRespond struct {
	Running    bool              `json:"running"`
	Total      int               `json:"total"`
	Partitions []PartitionStatus `json:"partitions"`
}

type RefreshRespond struct {
	Triggered bool `json:"triggered"`
}
