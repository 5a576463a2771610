package play

import "diamondsim/engine/internal/physics"

// ActorFrame is one fielder or runner in a frame.
type ActorFrame struct {
	ID       string       `json:"id" msgpack:"id"`
	Position physics.Vec3 `json:"position" msgpack:"p"`
	Speed    float64      `json:"speed" msgpack:"s"`
}

// Frame is a snapshot of the frozen post-step state.
type Frame struct {
	T        float64      `json:"t" msgpack:"t"`
	Phase    string       `json:"phase" msgpack:"ph"`
	Ball     physics.Vec3 `json:"ball" msgpack:"b"`
	BallKind string       `json:"ball_kind" msgpack:"bk"`
	Fielders []ActorFrame `json:"fielders" msgpack:"f"`
	Runners  []ActorFrame `json:"runners" msgpack:"r"`
}

// Observer receives frames while a play is being resolved.
type Observer func(Frame)
