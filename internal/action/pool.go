package action

// Pool recycles action instances keyed by descriptor id so steady-state play
// never allocates per use. "Destroy" means reset fields and push the instance
// back on the free list; slots past the per-descriptor capacity are the only
// ones ever dropped for collection.
type Pool struct {
	perDescriptor int
	free          map[string][]*Instance
	leased        map[*Instance]struct{}
}

// NewPool builds a pool retaining up to perDescriptor idle instances for each
// descriptor id.
func NewPool(perDescriptor int) *Pool {
	if perDescriptor <= 0 {
		perDescriptor = 4
	}
	return &Pool{
		perDescriptor: perDescriptor,
		free:          make(map[string][]*Instance),
		leased:        make(map[*Instance]struct{}),
	}
}

// Acquire hands out an instance bound to desc. The pool never hands the same
// instance to two owners: everything it returns is tracked as leased until
// Release.
func (p *Pool) Acquire(desc *Descriptor, owner string, target TargetSnapshot, sequence uint64) *Instance {
	var inst *Instance
	if idle := p.free[desc.ID]; len(idle) > 0 {
		inst = idle[len(idle)-1]
		p.free[desc.ID] = idle[:len(idle)-1]
	} else {
		inst = &Instance{}
	}
	inst.bind(desc, owner, target, sequence)
	p.leased[inst] = struct{}{}
	return inst
}

// Release reclaims a terminated instance. Releasing an instance the pool did
// not lease, or releasing twice, is ignored.
func (p *Pool) Release(inst *Instance) {
	if inst == nil {
		return
	}
	if _, ok := p.leased[inst]; !ok {
		return
	}
	delete(p.leased, inst)
	id := ""
	if inst.desc != nil {
		id = inst.desc.ID
	}
	inst.reset()
	if id == "" {
		return
	}
	if len(p.free[id]) < p.perDescriptor {
		p.free[id] = append(p.free[id], inst)
	}
}

// Leased reports how many instances are currently out.
func (p *Pool) Leased() int {
	return len(p.leased)
}

// Idle reports how many instances are parked for the given descriptor.
func (p *Pool) Idle(descriptorID string) int {
	return len(p.free[descriptorID])
}
