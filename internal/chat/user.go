// Package chat holds the shared chat state: users, their delivery queues and
// the rooms they join.
package chat

// User is one logged-in connection.  It is owned by its session and only
// referenced by the rooms it has joined.
type User struct {
	Name  string
	Queue *Queue
}

// NewUser returns a User with an empty delivery queue.
func NewUser(name string) *User {
	return &User{Name: name, Queue: NewQueue()}
}
