package realtime

import "encoding/json"

// frame is the wire envelope of the brainstorm gateway: an event name plus a
// kind-specific JSON payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound event names accepted by the gateway.
const (
	outRoomJoin     = "room:join"
	outRoomLeave    = "room:leave"
	outStart        = "brainstorm:start"
	outProceed      = "brainstorm:proceed"
	outRestartStage = "brainstorm:restart-stage"
	outPause        = "brainstorm:pause"
	outResume       = "brainstorm:resume"
	outCancel       = "brainstorm:cancel"
)

type roomPayload struct {
	SessionID int `json:"sessionId"`
}

type startPayload struct {
	SessionID int    `json:"sessionId"`
	Topic     string `json:"topic"`
	AgentIDs  []int  `json:"agentIds"`
}

type phasePayload struct {
	SessionID int    `json:"sessionId"`
	PhaseType string `json:"phaseType"`
}
