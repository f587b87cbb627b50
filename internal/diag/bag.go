package diag

// Bag is the ordered accumulator shared by all pipeline stages of one
// compilation call. Stages append; nothing ever removes or reorders.
// A Bag is not safe for concurrent use; each compilation owns its own.
type Bag struct {
	diags []Diagnostic
}

func NewBag() *Bag {
	return &Bag{}
}

// Add appends a diagnostic in arrival order.
func (b *Bag) Add(d Diagnostic) {
	b.diags = append(b.diags, d)
}

// All returns the accumulated diagnostics in arrival order. The returned
// slice is the Bag's backing storage; callers must not mutate it.
func (b *Bag) All() []Diagnostic {
	return b.diags
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-severity diagnostics.
func (b *Bag) ErrorCount() int {
	n := 0
	for _, d := range b.diags {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Len returns the total number of diagnostics, warnings included.
func (b *Bag) Len() int {
	return len(b.diags)
}
