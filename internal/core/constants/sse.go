package constants

import "time"

const (
	SSEHeartbeatFrame  = ": heartbeat\n\n"
	SSEDataPrefix      = "data: "
	SSEDonePayload     = "[DONE]"
	SSEEventPrefix     = "event:"
	SSECommentPrefix   = ":"

	HeartbeatInterval  = 5 * time.Second
	FirstChunkTimeout  = 120 * time.Second
)
