package compiler

// RAMSize is the number of RAM cells the allocator hands out.
const RAMSize = 255

// Allocator assigns RAM cells first-fit in ascending order. Cells are never
// given back, so every allocation in a compilation is distinct.
type Allocator struct {
	occupied [RAMSize]bool
	used     int
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate claims the lowest free cell.
func (a *Allocator) Allocate() (Value, error) {
	for i := range a.occupied {
		if !a.occupied[i] {
			a.occupied[i] = true
			a.used++
			return Cell(i), nil
		}
	}
	return Value{}, failf(ErrOutOfMemory, "", "all %d RAM cells are in use", RAMSize)
}

// Occupied reports whether cell i has been handed out. Indices outside the
// pool are never occupied.
func (a *Allocator) Occupied(i int) bool {
	if i < 0 || i >= RAMSize {
		return false
	}
	return a.occupied[i]
}

func (a *Allocator) Used() int { return a.used }

func (a *Allocator) Free() int { return RAMSize - a.used }
