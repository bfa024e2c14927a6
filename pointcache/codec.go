package pointcache

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

// Record is one particle row of a cached frame.
type Record struct {
	Index    int     `csv:"index"`
	Alive    uint8   `csv:"alive"`
	Flags    uint8   `csv:"flags"`
	Loop     int     `csv:"loop"`
	Birth    float64 `csv:"birth"`
	Death    float64 `csv:"death"`
	Lifetime float64 `csv:"lifetime"`
	Size     float64 `csv:"size"`
	Time     float64 `csv:"time"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Z        float64 `csv:"z"`
	VX       float64 `csv:"vx"`
	VY       float64 `csv:"vy"`
	VZ       float64 `csv:"vz"`
	QW       float64 `csv:"qw"`
	QX       float64 `csv:"qx"`
	QY       float64 `csv:"qy"`
	QZ       float64 `csv:"qz"`
	AX       float64 `csv:"ax"`
	AY       float64 `csv:"ay"`
	AZ       float64 `csv:"az"`
}

// EventRecord is one reaction event row of a cached frame.
type EventRecord struct {
	Kind     uint8   `csv:"kind"`
	Particle int     `csv:"particle"`
	Source   int     `csv:"source"`
	Time     float64 `csv:"time"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Z        float64 `csv:"z"`
	VX       float64 `csv:"vx"`
	VY       float64 `csv:"vy"`
	VZ       float64 `csv:"vz"`
	NX       float64 `csv:"nx"`
	NY       float64 `csv:"ny"`
	NZ       float64 `csv:"nz"`
}

// Frame is the decoded content of one cached frame.
type Frame struct {
	Records []Record
	Events  []EventRecord
}

// eventsMarker separates the particle table from the event table.
var eventsMarker = []byte("\n#events\n")

// NewRecord captures particle p.
func NewRecord(p int, pa *components.Particle) Record {
	s := pa.State
	return Record{
		Index: p, Alive: uint8(pa.Alive), Flags: uint8(pa.Flags), Loop: pa.Loop,
		Birth: pa.Time, Death: pa.DieTime, Lifetime: pa.Lifetime, Size: pa.Size,
		Time: s.Time,
		X:    s.Co.X, Y: s.Co.Y, Z: s.Co.Z,
		VX: s.Vel.X, VY: s.Vel.Y, VZ: s.Vel.Z,
		QW: s.Rot.Real, QX: s.Rot.Imag, QY: s.Rot.Jmag, QZ: s.Rot.Kmag,
		AX: s.Ave.X, AY: s.Ave.Y, AZ: s.Ave.Z,
	}
}

// Key returns the kinematic state stored in r.
func (r Record) Key() components.Key {
	return components.Key{
		Co:   r3.Vec{X: r.X, Y: r.Y, Z: r.Z},
		Vel:  r3.Vec{X: r.VX, Y: r.VY, Z: r.VZ},
		Rot:  quat.Number{Real: r.QW, Imag: r.QX, Jmag: r.QY, Kmag: r.QZ},
		Ave:  r3.Vec{X: r.AX, Y: r.AY, Z: r.AZ},
		Time: r.Time,
	}
}

// Apply restores everything but the lifecycle onto pa.
func (r Record) Apply(pa *components.Particle) {
	pa.Time = r.Birth
	pa.DieTime = r.Death
	pa.Lifetime = r.Lifetime
	pa.Size = r.Size
	pa.Loop = r.Loop
	pa.Flags = components.Flags(r.Flags)
	pa.State = r.Key()
	pa.Prev = pa.State
}

// NewEventRecord captures a reaction event.
func NewEventRecord(ev components.ReactionEvent) EventRecord {
	return EventRecord{
		Kind: uint8(ev.Kind), Particle: ev.Particle, Source: ev.Source, Time: ev.Time,
		X: ev.Co.X, Y: ev.Co.Y, Z: ev.Co.Z,
		VX: ev.Vel.X, VY: ev.Vel.Y, VZ: ev.Vel.Z,
		NX: ev.Nor.X, NY: ev.Nor.Y, NZ: ev.Nor.Z,
	}
}

// Event returns the reaction event stored in e.
func (e EventRecord) Event() components.ReactionEvent {
	return components.ReactionEvent{
		Kind:     components.ReactionKind(e.Kind),
		Co:       r3.Vec{X: e.X, Y: e.Y, Z: e.Z},
		Vel:      r3.Vec{X: e.VX, Y: e.VY, Z: e.VZ},
		Nor:      r3.Vec{X: e.NX, Y: e.NY, Z: e.NZ},
		Time:     e.Time,
		Particle: e.Particle,
		Source:   e.Source,
	}
}

// Encode serializes a frame as two CSV tables.
func Encode(f *Frame) ([]byte, error) {
	records := f.Records
	if records == nil {
		records = []Record{}
	}
	events := f.Events
	if events == nil {
		events = []EventRecord{}
	}
	rows, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	evs, err := gocsv.MarshalBytes(&events)
	if err != nil {
		return nil, fmt.Errorf("encoding events: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(rows) + len(evs) + len(eventsMarker))
	buf.Write(bytes.TrimRight(rows, "\n"))
	buf.Write(eventsMarker)
	buf.Write(evs)
	return buf.Bytes(), nil
}

// Decode parses a frame written by Encode.
func Decode(data []byte) (*Frame, error) {
	rows, evs, _ := bytes.Cut(data, eventsMarker)
	f := &Frame{}
	if len(bytes.TrimSpace(rows)) > 0 {
		if err := gocsv.UnmarshalBytes(rows, &f.Records); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
	}
	if len(bytes.TrimSpace(evs)) > 0 {
		if err := gocsv.UnmarshalBytes(evs, &f.Events); err != nil {
			return nil, fmt.Errorf("decoding events: %w", err)
		}
	}
	return f, nil
}
