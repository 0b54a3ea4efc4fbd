// Package sync implements the client-side data-synchronization layer: a
// process-wide cache keyed by structured query keys, the mutation engine
// that keeps it coherent with the backend, and composed read views for
// screens. The store is explicitly constructed at application start and
// passed by reference; there is no package-level singleton.
package sync

import (
	"strconv"
	"strings"
)

// Kind identifies the resource family a query key addresses
type Kind string

const (
	KindProjects      Kind = "projects"
	KindConversations Kind = "conversations"
	KindMessages      Kind = "messages"
)

// Key locates one cached value: a resource kind followed by the ancestor
// ids and, for single-item keys, the item's own id. Keys have total
// equality via their canonical string form, and prefix matching is a
// first-class operation used by invalidation.
type Key struct {
	Kind Kind
	Path []int64
}

// ProjectsKey addresses the project list
func ProjectsKey() Key {
	return Key{Kind: KindProjects}
}

// ProjectKey addresses a single project
func ProjectKey(projectID int64) Key {
	return Key{Kind: KindProjects, Path: []int64{projectID}}
}

// ConversationsKey addresses a project's conversation list
func ConversationsKey(projectID int64) Key {
	return Key{Kind: KindConversations, Path: []int64{projectID}}
}

// ConversationKey addresses a single conversation
func ConversationKey(projectID, conversationID int64) Key {
	return Key{Kind: KindConversations, Path: []int64{projectID, conversationID}}
}

// MessagesKey addresses a conversation's message list
func MessagesKey(projectID, conversationID int64) Key {
	return Key{Kind: KindMessages, Path: []int64{projectID, conversationID}}
}

// String returns the canonical form of the key, e.g. "conversations/4/10".
// Two keys are the same cache slot iff their canonical forms are equal.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Kind))
	for _, id := range k.Path {
		b.WriteByte('/')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// Equal reports whether two keys address the same cache slot
func (k Key) Equal(other Key) bool {
	if k.Kind != other.Kind || len(k.Path) != len(other.Path) {
		return false
	}
	for i := range k.Path {
		if k.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches this key: same kind and the
// prefix path is a leading segment of the key path. A list key is a prefix
// of the single-item keys beneath it, which is what lets a create under a
// parent invalidate that parent's list and every cached child at once.
func (k Key) HasPrefix(prefix Key) bool {
	if k.Kind != prefix.Kind || len(prefix.Path) > len(k.Path) {
		return false
	}
	for i := range prefix.Path {
		if k.Path[i] != prefix.Path[i] {
			return false
		}
	}
	return true
}
