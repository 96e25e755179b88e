package events

const (
	TopicBind   = "netbind:events:bind"
	TopicUnbind = "netbind:events:unbind"
	TopicLost   = "netbind:events:lost"
)
