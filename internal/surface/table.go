package surface

import "sync"

// Table stores the geometry of every widget. Writes come from the draw loop;
// Snapshot may be called from other goroutines.
type Table struct {
	mu      sync.RWMutex
	layout  Layout
	rects   []Rect
	width   []float64
	content []float64
	scroll  []float64
	state   State
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Build(layout Layout) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := layout.Cells()
	t.layout = layout
	t.rects = make([]Rect, 0, n)
	t.width = make([]float64, n)
	t.content = make([]float64, n)
	t.scroll = make([]float64, n)
	return nil
}

func (t *Table) CreateWidget(cell Cell, rect Rect) Widget {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rects = append(t.rects, rect)
	t.width[cell.Index] = rect.W
	t.content[cell.Index] = rect.H
	return &tableWidget{table: t, index: cell.Index}
}

func (t *Table) Present(state State) error {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	return nil
}

func (t *Table) Layout() Layout {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.layout
}

// Snapshot is a copy of the table taken under lock.
type Snapshot struct {
	Layout  Layout
	Rects   []Rect
	Content []float64
	Scroll  []float64
	State   State
}

func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Layout:  t.layout,
		Rects:   append([]Rect(nil), t.rects...),
		Content: append([]float64(nil), t.content...),
		Scroll:  append([]float64(nil), t.scroll...),
		State:   t.state,
	}
}

// CopyInto fills content and scroll without allocating when they are large
// enough, and returns the resized slices.
func (t *Table) CopyInto(content, scroll []float64) ([]float64, []float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	content = append(content[:0], t.content...)
	scroll = append(scroll[:0], t.scroll...)
	return content, scroll
}

type tableWidget struct {
	table *Table
	index int
}

func (w *tableWidget) SetContentSize(width, height float64) {
	w.table.mu.Lock()
	w.table.width[w.index] = width
	w.table.content[w.index] = height
	w.table.mu.Unlock()
}

func (w *tableWidget) SetScrollOffset(px float64) {
	w.table.mu.Lock()
	w.table.scroll[w.index] = px
	w.table.mu.Unlock()
}
