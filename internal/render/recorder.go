package render

import "sync"

// Recorder is an in-memory Backend. Its primitives keep every item they
// receive, which is what the CLI summarizes and tests inspect.
type Recorder struct {
	mu         sync.Mutex
	primitives []*RecordedPrimitive
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewPrimitive implements Backend.
func (r *Recorder) NewPrimitive(category Category, key AppearanceKey) Primitive {
	p := &RecordedPrimitive{Category: category, Key: key}
	r.mu.Lock()
	r.primitives = append(r.primitives, p)
	r.mu.Unlock()
	return p
}

// Primitives returns all primitives in creation order.
func (r *Recorder) Primitives() []*RecordedPrimitive {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*RecordedPrimitive(nil), r.primitives...)
}

// RecordedPrimitive is a primitive created by a Recorder.
type RecordedPrimitive struct {
	Category Category
	Key      AppearanceKey
	Items    []Item
}

// Add implements Primitive.
func (p *RecordedPrimitive) Add(item Item) {
	p.Items = append(p.Items, item)
}

// Len implements Primitive.
func (p *RecordedPrimitive) Len() int {
	return len(p.Items)
}
