package event

// Reply is the opaque result an action executor returns for a dispatched
// Event. The receiver releases it without inspecting it.
type Reply interface {
	Release()
}

// ReplyFunc adapts a function to the Reply interface.
type ReplyFunc func()

// Release calls f.
func (f ReplyFunc) Release() {
	if f != nil {
		f()
	}
}

// ReleaseReply releases r if it is non-nil.
func ReleaseReply(r Reply) {
	if r != nil {
		r.Release()
	}
}
