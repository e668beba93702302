package class

import "github.com/sivasankariit/qfq-rl/internal/fixedpoint"

// Registry owns every admitted class and the fixed array of groups they map
// into. It is not safe for concurrent use; all mutation happens on the
// scheduler's single consumer goroutine.
type Registry struct {
	classes map[uint32]*Class
	groups  [fixedpoint.MaxIndex + 1]*Group

	// WSum is the sum of configured weights across all classes, excluding
	// weight-zero (sentinel) classes.
	WSum int64
}

// NewRegistry constructs an empty registry with all MaxIndex+1 groups
// pre-allocated (groups are fixed infrastructure, not created on demand).
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[uint32]*Class)}
	for i := range r.groups {
		r.groups[i] = NewGroup(i)
	}
	return r
}

// Group returns the group at the given index.
func (r *Registry) Group(index int) *Group {
	return r.groups[index]
}

// Groups returns all groups, indexed [0, MaxIndex].
func (r *Registry) Groups() []*Group {
	return r.groups[:]
}

// Lookup returns the class with the given id, or nil.
func (r *Registry) Lookup(id uint32) *Class {
	return r.classes[id]
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	return len(r.classes)
}

// Each calls fn for every registered class, in unspecified order.
func (r *Registry) Each(fn func(*Class)) {
	for _, c := range r.classes {
		fn(c)
	}
}

// Insert registers a brand-new class, assigning its group from its current
// InvW/LMax, and folding its weight into WSum. The caller must have already
// validated weight/wsum bounds.
func (r *Registry) Insert(c *Class) {
	c.Grp = r.groups[CalcIndex(c.InvW, c.LMax)]
	r.classes[c.ID] = c
	if !c.IsZeroWeight() {
		r.WSum += c.Weight()
	}
}

// Remove unregisters a class and removes its weight from WSum. The caller
// is responsible for having already deactivated it, if backlogged.
func (r *Registry) Remove(id uint32) {
	c, ok := r.classes[id]
	if !ok {
		return
	}
	if !c.IsZeroWeight() {
		r.WSum -= c.Weight()
	}
	delete(r.classes, id)
}

// Reconfigure updates an existing class's weight/lmax, recomputing WSum and
// its group assignment. It returns the class's old group and new group, so
// the caller (the engine) can move it between slot rings if they differ,
// and oldGroup == newGroup if nothing changed.
func (r *Registry) Reconfigure(c *Class, invW int64, lmax uint32) (oldGroup, newGroup *Group) {
	oldGroup = c.Grp

	if !c.IsZeroWeight() {
		r.WSum -= c.Weight()
	}

	c.InvW = invW
	c.LMax = lmax

	if !c.IsZeroWeight() {
		r.WSum += c.Weight()
	}

	newGroup = r.groups[CalcIndex(invW, lmax)]
	c.Grp = newGroup
	return oldGroup, newGroup
}
