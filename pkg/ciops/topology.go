package ciops

// SetGateLevels recomputes every gate's topological level (0 for primary
// inputs and the constant gate, 1+max(level of inputs) otherwise) and
// refreshes the cached topological order used by OrderedGateTraversal.
// Grounded on Specification.setGateLevels/getTopologicalOrder: the
// traversal is iterative rather than recursive (mandatory redesign, see
// DESIGN.md note 5), since a combinational circuit's depth is not bounded
// a priori.
func (c *Circuit) SetGateLevels() error {
	c.levels = make(map[int]int, len(c.gates))
	for _, pi := range c.pis {
		c.levels[pi] = 0
	}
	if c.constAlias != nil {
		c.levels[*c.constAlias] = 0
	}
	order, err := c.computeTopologicalOrder()
	if err != nil {
		return err
	}
	c.topoOrder = order
	c.topoValid = true
	for _, alias := range order {
		g, err := c.Gate(alias)
		if err != nil {
			return err
		}
		if len(g.Inputs()) == 0 {
			continue
		}
		maxIn := 0
		for _, in := range g.Inputs() {
			if lvl := c.levels[in]; lvl > maxIn {
				maxIn = lvl
			}
		}
		c.levels[alias] = maxIn + 1
	}
	return nil
}

// stackFrame mirrors the original tool's (alias, childrenProcessed) stack
// entries for the iterative post-order DFS.
type stackFrame struct {
	alias            int
	childrenProcessed bool
}

// computeTopologicalOrder performs an iterative, stack-based DFS over the
// fan-out graph starting from the primary inputs, producing an ordering
// where every gate appears after all of its inputs. The constant gate (if
// any) has no path from any primary input, so it is placed at the front
// separately, exactly as getTopologicalOrder does.
func (c *Circuit) computeTopologicalOrder() ([]int, error) {
	expanded := make(map[int]struct{}, len(c.gates))
	visiting := make(map[int]struct{})
	order := make([]int, len(c.gates))
	orderIdx := len(order) - 1

	for _, pi := range c.pis {
		var stack []stackFrame
		for succ := range c.fanout[pi] {
			if _, ok := expanded[succ]; !ok {
				stack = append(stack, stackFrame{alias: succ})
			}
		}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := expanded[top.alias]; ok {
				continue
			}
			if top.childrenProcessed {
				order[orderIdx] = top.alias
				orderIdx--
				expanded[top.alias] = struct{}{}
				delete(visiting, top.alias)
				continue
			}
			if _, ok := visiting[top.alias]; ok {
				return nil, ErrCyclic
			}
			visiting[top.alias] = struct{}{}
			stack = append(stack, stackFrame{alias: top.alias, childrenProcessed: true})
			for succ := range c.fanout[top.alias] {
				if _, ok := expanded[succ]; !ok {
					stack = append(stack, stackFrame{alias: succ})
				}
			}
		}
	}

	if len(expanded) != len(c.gates) {
		if c.constAlias == nil || len(expanded) != len(c.gates)-1 {
			return nil, ErrCyclic
		}
		order[0] = *c.constAlias
	}
	return order, nil
}

// OrderedGateTraversal returns the current topological order of gate
// aliases, recomputing it first if the circuit has been mutated since the
// last computation.
func (c *Circuit) OrderedGateTraversal() ([]int, error) {
	if !c.topoValid {
		if err := c.SetGateLevels(); err != nil {
			return nil, err
		}
	}
	return c.topoOrder, nil
}

// GateIterator walks a snapshot of the circuit's topological order,
// failing with ErrStaleIterator if the circuit is mutated mid-traversal
// (the Go stand-in for
// the original's live generator, see DESIGN.md note 4).
type GateIterator struct {
	c     *Circuit
	epoch int
	order []int
	pos   int
}

// Iterate returns a GateIterator bound to the current topological order.
func (c *Circuit) Iterate() (*GateIterator, error) {
	order, err := c.OrderedGateTraversal()
	if err != nil {
		return nil, err
	}
	return &GateIterator{c: c, epoch: c.traversalEp, order: order}, nil
}

// Next returns the next gate in topological order, or (nil, false, nil)
// once exhausted. It returns ErrStaleIterator if the circuit has mutated
// since the iterator was created.
func (it *GateIterator) Next() (*Gate, bool, error) {
	if it.c.traversalEp != it.epoch {
		return nil, false, ErrStaleIterator
	}
	if it.pos >= len(it.order) {
		return nil, false, nil
	}
	alias := it.order[it.pos]
	it.pos++
	g, err := it.c.Gate(alias)
	if err != nil {
		return nil, false, err
	}
	return g, true, nil
}
