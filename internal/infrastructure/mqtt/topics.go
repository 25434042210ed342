package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "sqlgate"

// Topics builds sqlgate topic names under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "sqlgate"}
//	topics.Changes("users") // "sqlgate/changes/users"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: sqlgate/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// Changes returns the topic carrying row change events for a table.
//
// Example: sqlgate/changes/todos
func (t Topics) Changes(table string) string {
	return t.prefix() + "/changes/" + table
}

// AllChanges returns a wildcard matching every table's change topic.
//
// Example: sqlgate/changes/+
func (t Topics) AllChanges() string {
	return t.prefix() + "/changes/+"
}
