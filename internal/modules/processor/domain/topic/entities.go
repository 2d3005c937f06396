package topic

import (
	"context"
	"fmt"
	"strings"
)

// Role is the logical identity of an input topic. The set is closed.
type Role int

const (
	RoleDaily Role = iota + 1
	Role15Min
	RoleOptions
	RoleHistorical
)

var roleNames = map[Role]string{
	RoleDaily:      "daily",
	Role15Min:      "15min",
	RoleOptions:    "options",
	RoleHistorical: "historical",
}

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{RoleDaily, Role15Min, RoleOptions, RoleHistorical}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// InputKey is the configuration key of the role's input topic.
func (r Role) InputKey() string { return r.String() }

// OutputKey is the configuration key of the role's output topic.
func (r Role) OutputKey() string { return "processed-" + r.String() }

func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown topic role %q", s)
}

// PartitionKey identifies one partition worker.
type PartitionKey struct {
	Topic     string
	Partition int32
}

func (k PartitionKey) String() string {
	return fmt.Sprintf("%s[%d]", k.Topic, k.Partition)
}

// Transform turns a decoded JSON document into the document to republish.
// It must be synchronous; a returned error drops the message.
type Transform func(ctx context.Context, doc any) (any, error)
