package io

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/route"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// Blockage kinds accepted in job files.
const (
	KindMetal   = "metal"
	KindPolygon = "polygon"
	KindCut     = "cut"
	KindRemove  = "remove"
)

type jobFile struct {
	Name       string          `toml:"name"`
	Technology tech.Technology `toml:"technology"`
	Router     toml.Primitive  `toml:"router"`
	Blockages  []blockageSpec  `toml:"blockages"`
	Requests   []requestSpec   `toml:"requests"`
}

type blockageSpec struct {
	Kind   string       `toml:"kind"`
	Layer  string       `toml:"layer"`
	Rect   []float64    `toml:"rect"`
	Points [][2]float64 `toml:"points"`
	Net    string       `toml:"net"`
	Mask   int          `toml:"mask"`
}

type terminalSpec struct {
	ID     string       `toml:"id"`
	Rect   []float64    `toml:"rect"`
	Layers []string     `toml:"layers"`
	Mask   int          `toml:"mask"`
	Points [][2]float64 `toml:"points"`
	Node   string       `toml:"node"`
}

type requestSpec struct {
	ID        string         `toml:"id"`
	Net       string         `toml:"net"`
	Width     float64        `toml:"width"`
	A         terminalSpec   `toml:"a"`
	B         terminalSpec   `toml:"b"`
	Taps      []terminalSpec `toml:"taps"`
	KillArcs  []string       `toml:"kill_arcs"`
	KillNodes []string       `toml:"kill_nodes"`
}

// Job is a decoded routing job: a validated technology, an index holding the
// existing geometry and the requests in file order.
type Job struct {
	Name     string
	Tech     *tech.Technology
	Index    *blockage.Index
	Requests []*route.Request

	// Nets maps the net names used in the file to their cells.
	Nets map[string]blockage.NetID

	md     toml.MetaData
	router toml.Primitive
}

// HasRouter reports whether the job file has a [router] table.
func (j *Job) HasRouter() bool { return j.md.IsDefined("router") }

// DecodeRouter decodes the [router] table into v. It is a no-op when the
// table is absent.
func (j *Job) DecodeRouter(v any) error {
	if !j.HasRouter() {
		return nil
	}
	if err := j.md.PrimitiveDecode(j.router, v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode [router]")
	}
	return nil
}

// ParseJob decodes a job from TOML data.
func ParseJob(data []byte) (*Job, error) {
	var f jobFile
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode job")
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		for _, k := range keys {
			// [router] is decoded later by the caller.
			if len(k) > 0 && k[0] == "router" {
				continue
			}
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown job key %q", k.String())
		}
	}

	t := f.Technology
	if err := t.Validate(); err != nil {
		return nil, err
	}
	j := &Job{
		Name:   f.Name,
		Tech:   &t,
		Index:  blockage.NewIndex(t.MetalCount(), nil),
		Nets:   make(map[string]blockage.NetID),
		md:     md,
		router: f.Router,
	}
	for i, b := range f.Blockages {
		if err := j.addBlockage(b); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "blockage %d", i+1)
		}
	}
	for _, q := range f.Requests {
		req, err := j.request(q)
		if err != nil {
			return nil, err
		}
		j.Requests = append(j.Requests, req)
	}
	return j, nil
}

// ReadJob decodes a job from r. ReadJob does not close r.
func ReadJob(r io.Reader) (*Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	return ParseJob(data)
}

// ImportJob reads the job file at path.
func ImportJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "job %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return ParseJob(data)
}

// Check validates every request against the technology and returns all
// problems found.
func (j *Job) Check() []error {
	var errs []error
	seen := make(map[string]bool)
	for _, q := range j.Requests {
		if seen[q.ID] {
			errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "duplicate request id %q", q.ID))
		}
		seen[q.ID] = true
		if err := q.Validate(j.Tech.MetalCount()); err != nil {
			errs = append(errs, err)
		}
		for _, tp := range q.Taps {
			tq := route.Request{ID: q.ID + "." + tp.ID, A: tp.Terminal, B: tp.Terminal}
			if err := tq.Validate(j.Tech.MetalCount()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func (j *Job) net(name string) blockage.NetID {
	if name == "" {
		return blockage.NoNet
	}
	if id, ok := j.Nets[name]; ok {
		return id
	}
	id := j.Index.Nets().New(name)
	j.Nets[name] = id
	return id
}

func (j *Job) metal(name string) (int, error) {
	z, ok := j.Tech.LayerIndex(name)
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidLayer, "unknown metal layer %q", name)
	}
	return z, nil
}

func (j *Job) viaLayer(name string) (int, error) {
	for i, v := range j.Tech.Vias {
		if v.Name == name {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidLayer, "unknown via layer %q", name)
}

func (j *Job) addBlockage(b blockageSpec) error {
	switch b.Kind {
	case "", KindMetal:
		z, err := j.metal(b.Layer)
		if err != nil {
			return err
		}
		r, err := rect(b.Rect)
		if err != nil {
			return err
		}
		j.Index.AddMetal(z, r, j.net(b.Net), b.Mask)
	case KindPolygon:
		z, err := j.metal(b.Layer)
		if err != nil {
			return err
		}
		if len(b.Points) < 3 {
			return errors.New(errors.ErrCodeInvalidGeometry, "polygon needs at least 3 points, got %d", len(b.Points))
		}
		j.Index.AddPolygon(z, geom.Polygon{Points: points(b.Points)}, j.net(b.Net), b.Mask)
	case KindCut:
		lower, err := j.viaLayer(b.Layer)
		if err != nil {
			return err
		}
		r, err := rect(b.Rect)
		if err != nil {
			return err
		}
		j.Index.AddCut(lower, r, j.net(b.Net), b.Mask)
	case KindRemove:
		z, err := j.metal(b.Layer)
		if err != nil {
			return err
		}
		r, err := rect(b.Rect)
		if err != nil {
			return err
		}
		j.Index.Subtract(z, r)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown blockage kind %q", b.Kind)
	}
	return nil
}

func (j *Job) request(q requestSpec) (*route.Request, error) {
	if err := errors.ValidateID("request", q.ID); err != nil {
		return nil, err
	}
	a, err := j.terminal(q.A)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "request %s terminal a", q.ID)
	}
	b, err := j.terminal(q.B)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "request %s terminal b", q.ID)
	}
	req := &route.Request{
		ID:        q.ID,
		Net:       j.net(q.Net),
		NetName:   q.Net,
		A:         a,
		B:         b,
		Width:     q.Width,
		KillArcs:  q.KillArcs,
		KillNodes: q.KillNodes,
	}
	if q.Net == "" {
		// Every request needs a network; unnamed ones get a private cell.
		req.Net = j.Index.Nets().New("")
		req.NetName = j.Index.Nets().Name(req.Net)
	}
	for k, tp := range q.Taps {
		t, err := j.terminal(tp)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "request %s tap %d", q.ID, k+1)
		}
		id := tp.ID
		if id == "" {
			id = fmt.Sprintf("tap%d", k)
		}
		req.Taps = append(req.Taps, route.Tap{ID: id, Terminal: t})
	}
	return req, nil
}

func (j *Job) terminal(s terminalSpec) (route.Terminal, error) {
	r, err := rect(s.Rect)
	if err != nil {
		return route.Terminal{}, err
	}
	t := route.Terminal{Area: r, Mask: s.Mask, Node: s.Node, Points: points(s.Points)}
	for _, name := range s.Layers {
		z, err := j.metal(name)
		if err != nil {
			return route.Terminal{}, err
		}
		t.Layers = append(t.Layers, z)
	}
	return t, nil
}

func rect(v []float64) (geom.Rect, error) {
	if len(v) != 4 {
		return geom.Rect{}, errors.New(errors.ErrCodeInvalidGeometry, "rect needs 4 coordinates, got %d", len(v))
	}
	return geom.R(v[0], v[1], v[2], v[3]), nil
}

func points(v [][2]float64) []geom.Point {
	if len(v) == 0 {
		return nil
	}
	out := make([]geom.Point, len(v))
	for i, p := range v {
		out[i] = geom.Pt(p[0], p[1])
	}
	return out
}
