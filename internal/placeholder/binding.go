package placeholder

import "sync"

// ChangeFunc receives learner input from a control.
type ChangeFunc func(questionID uint, value string)

// Binding is the live state of one rendered template. It is released when
// the content is replaced; after that every call is a no-op.
type Binding struct {
	mu        sync.Mutex
	controls  []Control
	byID      map[string]Control
	values    map[string]string
	lastInput map[string]uint64
	seq       uint64
	onChange  ChangeFunc
	released  bool
}

func Bind(tpl Template, onChange ChangeFunc) *Binding {
	controls := tpl.Controls()
	b := &Binding{
		controls:  controls,
		byID:      make(map[string]Control, len(controls)),
		values:    make(map[string]string, len(controls)),
		lastInput: make(map[string]uint64, len(controls)),
		onChange:  onChange,
	}
	for _, c := range controls {
		b.byID[c.ID] = c
		b.values[c.ID] = ""
	}
	return b
}

// Input records a keystroke from the learner and forwards it to onChange.
// It returns false when the question has no control or the binding is released.
func (b *Binding) Input(questionID uint, value string) bool {
	b.mu.Lock()
	id := ControlID(questionID)
	if _, ok := b.byID[id]; !ok || b.released {
		b.mu.Unlock()
		return false
	}
	value = Truncate(value)
	b.seq++
	b.values[id] = value
	b.lastInput[id] = b.seq
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(questionID, value)
	}
	return true
}

// PendingSync is an answer-map snapshot waiting to be pushed into the controls.
type PendingSync struct {
	b       *Binding
	seq     uint64
	answers map[uint]string
}

// ScheduleSync captures answers now. Controls the learner types into before
// Apply keep the typed value.
func (b *Binding) ScheduleSync(answers map[uint]string) *PendingSync {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make(map[uint]string, len(answers))
	for k, v := range answers {
		snapshot[k] = v
	}
	return &PendingSync{b: b, seq: b.seq, answers: snapshot}
}

// Apply writes the snapshot into every control whose value differs and
// returns the IDs of the controls it changed.
func (p *PendingSync) Apply() []string {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	var changed []string
	for _, c := range b.controls {
		if b.lastInput[c.ID] > p.seq {
			continue
		}
		next := p.answers[c.QuestionID]
		if b.values[c.ID] != next {
			b.values[c.ID] = next
			changed = append(changed, c.ID)
		}
	}
	return changed
}

// Sync pushes answers into the controls immediately.
func (b *Binding) Sync(answers map[uint]string) []string {
	return b.ScheduleSync(answers).Apply()
}

func (b *Binding) Value(questionID uint) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[ControlID(questionID)]
	return v, ok
}

// Values returns a copy of the control values keyed by control ID.
func (b *Binding) Values() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Release drops the change handler.
func (b *Binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.onChange = nil
}

func (b *Binding) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
