package kinematics

import (
	"math"
	"sort"

	"diamondsim/engine/internal/physics"
)

const lookaheadStep = 1.0 // ft

// MoverOptions configure how an actor follows its path.
type MoverOptions struct {
	// Start is the play time of the trigger event; motion begins after the reaction delay.
	Start float64
	// StopAtEnd brakes so the actor halts on the end of the path.
	StopAtEnd bool
	// Slide lets the actor slide into the end of the path when arriving fast,
	// stopping at close to the attributes' SlideDecel.
	Slide bool
	// Offset is the distance along the path already covered at Start, such as a lead off the bag.
	Offset float64
}

type slideState struct {
	start float64
	from  float64
	speed float64
	decel float64
}

// Mover advances one actor along a path on the shared play clock.
type Mover struct {
	attrs    Attributes
	path     Path
	opts     MoverOptions
	clock    float64
	distance float64
	speed    float64
	arrived  bool
	arrival  float64
	slide    *slideState
	lateral  float64
}

// NewMover places an actor opts.Offset along path with its clock at opts.Start.
func NewMover(attrs Attributes, path Path, opts MoverOptions) *Mover {
	offset := math.Max(0, math.Min(opts.Offset, path.Length()))
	return &Mover{attrs: attrs, path: path, opts: opts, clock: opts.Start, distance: offset}
}

// Advance moves the actor forward by dt seconds.
func (m *Mover) Advance(dt float64) {
	if m == nil || dt <= 0 {
		return
	}
	t0 := m.clock
	m.clock += dt
	if m.arrived {
		return
	}
	//1.- Stay put until the reaction delay has elapsed.
	begin := m.opts.Start + m.attrs.ReactionDelay
	if m.clock <= begin {
		return
	}
	if t0 < begin {
		t0 = begin
	}
	//2.- Slide when close and fast enough, otherwise run under the speed caps.
	length := m.path.Length()
	if m.slide == nil && m.opts.Slide {
		m.maybeSlide(t0, length)
	}
	if m.slide != nil {
		m.advanceSlide(m.clock, length)
		return
	}
	h := m.clock - t0
	remaining := length - m.distance
	next := math.Max(0, math.Min(m.speedCap(remaining, h, length), m.speed+m.attrs.Acceleration*h))
	travelled := 0.5 * (m.speed + next) * h
	//3.- Interpolate the arrival inside the step that crosses the end of the path.
	if travelled >= remaining {
		m.arrival = t0 + crossingTime(m.speed, next, h, remaining)
		m.arrived = true
		m.distance = length
		m.speed = next
		if m.opts.StopAtEnd || m.opts.Slide {
			m.speed = 0
		}
		return
	}
	m.distance += travelled
	m.speed = next
	if k := m.path.CurvatureAt(m.distance); k > 0 {
		m.lateral = math.Max(m.lateral, next*next*k)
	}
}

func (m *Mover) speedCap(remaining, h, length float64) float64 {
	limit := m.attrs.TopSpeed
	a := m.attrs.Acceleration
	slide := m.opts.Slide && m.attrs.TopSpeed >= m.attrs.SlideMinSpeed
	if m.opts.StopAtEnd && !slide {
		limit = math.Min(limit, math.Sqrt(2*a*math.Max(0, remaining)))
	}
	if slide && m.attrs.SlideDecel > 0 && remaining > m.attrs.SlideTrigger {
		// Come into the slide no faster than SlideDecel can stop over the trigger distance.
		entry := 2 * m.attrs.SlideDecel * m.attrs.SlideTrigger
		limit = math.Min(limit, math.Sqrt(entry+2*a*(remaining-m.attrs.SlideTrigger)))
	}
	if m.attrs.LateralAccel <= 0 {
		return limit
	}
	if bender, ok := m.path.(Bender); ok {
		for _, bend := range bender.Bends() {
			limit = math.Min(limit, m.bendCap(bend, h))
		}
		return limit
	}
	//1.- Without exact bends sample ahead, giving up a grid step of braking room.
	horizon := m.speed*h + m.speed*m.speed/(2*a) + lookaheadStep
	for d := 0.0; d <= horizon && m.distance+d <= length; d += lookaheadStep {
		k := m.path.CurvatureAt(m.distance + d)
		if k <= 0 {
			continue
		}
		cornering := m.attrs.LateralAccel / k
		limit = math.Min(limit, math.Sqrt(cornering+2*a*math.Max(0, d-lookaheadStep-m.speed*h)))
	}
	return limit
}

// bendCap is the fastest speed at the end of this step from which the actor
// can still be at cornering speed when it enters the bend. The step covers
// (speed+next)*h/2, so the braking room left is solved for next exactly.
func (m *Mover) bendCap(bend Bend, h float64) float64 {
	if m.distance >= bend.End || bend.Curvature <= 0 {
		return math.Inf(1)
	}
	cornering := m.attrs.LateralAccel / bend.Curvature
	if m.distance >= bend.Start {
		return math.Sqrt(cornering)
	}
	a := m.attrs.Acceleration
	room := cornering + 2*a*(bend.Start-m.distance) - a*m.speed*h
	return math.Max(0, (-a*h+math.Sqrt(math.Max(0, a*a*h*h+4*room)))/2)
}

func (m *Mover) maybeSlide(t0, length float64) {
	remaining := length - m.distance
	if remaining <= 0 || m.speed <= 0 || m.speed < m.attrs.SlideMinSpeed {
		return
	}
	trigger := m.attrs.SlideTrigger
	if m.attrs.SlideDecel > 0 {
		trigger = math.Min(trigger, m.speed*m.speed/(2*m.attrs.SlideDecel))
	}
	if remaining > trigger {
		return
	}
	m.slide = &slideState{start: t0, from: m.distance, speed: m.speed, decel: m.speed * m.speed / (2 * remaining)}
}

func (m *Mover) advanceSlide(t1, length float64) {
	s := m.slide
	duration := s.speed / s.decel
	elapsed := t1 - s.start
	if elapsed >= duration {
		m.arrived = true
		m.arrival = s.start + duration
		m.distance = length
		m.speed = 0
		return
	}
	m.distance = s.from + s.speed*elapsed - 0.5*s.decel*elapsed*elapsed
	m.speed = s.speed - s.decel*elapsed
}

// crossingTime solves for the time inside a step at which the actor covers
// remaining, assuming speed changes linearly from v0 to v1 over h.
func crossingTime(v0, v1, h, remaining float64) float64 {
	if remaining <= 0 {
		return 0
	}
	accel := (v1 - v0) / h
	var tau float64
	if math.Abs(accel) < 1e-12 {
		if v0 <= 0 {
			return h
		}
		tau = remaining / v0
	} else {
		tau = (-v0 + math.Sqrt(math.Max(0, v0*v0+2*accel*remaining))) / accel
	}
	return math.Max(0, math.Min(h, tau))
}

// Retarget swaps the path while keeping the distance already run.
func (m *Mover) Retarget(path Path) {
	m.path = path
	m.slide = nil
	if m.distance < path.Length() {
		m.arrived = false
	}
}

// SetOptions replaces the braking and sliding behaviour for the rest of the run.
func (m *Mover) SetOptions(opts MoverOptions) {
	opts.Start, opts.Offset = m.opts.Start, m.opts.Offset
	m.opts = opts
}

// Clone copies the mover so predictions never disturb the live actor.
func (m *Mover) Clone() *Mover {
	c := *m
	if m.slide != nil {
		s := *m.slide
		c.slide = &s
	}
	return &c
}

func (m *Mover) Position() physics.Vec3 { return m.path.PointAt(m.distance) }
func (m *Mover) Distance() float64      { return m.distance }
func (m *Mover) Speed() float64         { return m.speed }
func (m *Mover) Clock() float64         { return m.clock }
func (m *Mover) Path() Path             { return m.path }
func (m *Mover) Sliding() bool          { return m.slide != nil }

// Arrival reports when the actor reached the end of its path.
func (m *Mover) Arrival() (float64, bool) { return m.arrival, m.arrived }

// PeakLateralAccel is the largest centripetal acceleration used so far.
func (m *Mover) PeakLateralAccel() float64 { return m.lateral }

// Profile records distance against time for one run so that "time to reach
// distance s" can be answered for any s along the path.
type Profile struct {
	times     []float64
	distances []float64
	arrival   float64
	arrived   bool
}

// NewProfile runs a fresh mover along the path and records it.
func NewProfile(attrs Attributes, path Path, opts MoverOptions, step, horizon float64) *Profile {
	return Predict(NewMover(attrs, path, opts), step, horizon)
}

// Predict runs a copy of m forward until it arrives or horizon seconds pass.
func Predict(m *Mover, step, horizon float64) *Profile {
	sim := m.Clone()
	p := &Profile{}
	p.record(sim)
	end := sim.clock + horizon
	for !sim.arrived && sim.clock < end {
		sim.Advance(step)
		p.record(sim)
	}
	p.arrival, p.arrived = sim.Arrival()
	return p
}

func (p *Profile) record(m *Mover) {
	p.times = append(p.times, m.clock)
	p.distances = append(p.distances, m.distance)
}

// Arrival is the interpolated time the run reached the end of the path.
func (p *Profile) Arrival() (float64, bool) { return p.arrival, p.arrived }

// TimeAt returns when the run first covered distance s.
func (p *Profile) TimeAt(s float64) (float64, bool) {
	n := len(p.distances)
	if n == 0 {
		return 0, false
	}
	if s <= p.distances[0] {
		return p.times[0], true
	}
	if s >= p.distances[n-1] {
		if p.arrived && s <= p.distances[n-1]+1e-9 {
			return p.arrival, true
		}
		return 0, false
	}
	i := sort.SearchFloat64s(p.distances, s)
	d0, d1 := p.distances[i-1], p.distances[i]
	t0, t1 := p.times[i-1], p.times[i]
	if p.arrived && i == n-1 {
		t1 = p.arrival
	}
	if d1 == d0 {
		return t1, true
	}
	return t0 + (t1-t0)*(s-d0)/(d1-d0), true
}
