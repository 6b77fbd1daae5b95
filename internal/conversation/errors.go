package conversation

import "errors"

// Sentinel errors for conversation operations. Check with errors.Is.
//
// Example:
//
//	sess, err := store.GetSession(ctx, id)
//	if errors.Is(err, conversation.ErrNotFound) {
//	    // Handle missing session
//	}
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("session not found")
)
