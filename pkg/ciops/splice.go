package ciops

// popAny removes and returns an arbitrary element from a non-empty set,
// mirroring Python's set.pop() used throughout the original worklists.
func popAny(s map[int]struct{}) int {
	for x := range s {
		delete(s, x)
		return x
	}
	panic("ciops: popAny called on empty set")
}

func setFromSlice(xs []int) map[int]struct{} {
	out := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func unionInto(dst, src map[int]struct{}) {
	for x := range src {
		dst[x] = struct{}{}
	}
}

func subtract(s map[int]struct{}, remove []int) {
	for _, x := range remove {
		delete(s, x)
	}
}

// getOutputsDict computes, for each subcircuit output that survives as a
// named external gate (outputAssoc[x] != constRemovedSentinel), the set
// of downstream fan-out it must carry over to its replacement alias.
func (c *Circuit) getOutputsDict(toRemove []int, outputAssoc map[int]int) map[int]map[int]struct{} {
	toRemoveSet := setFromSlice(toRemove)
	subOutputs := c.SubcircuitOutputs(toRemoveSet)
	log := make(map[int]map[int]struct{})
	for x := range subOutputs {
		outs := make(map[int]struct{}, len(c.fanout[x]))
		for succ := range c.fanout[x] {
			if _, inside := toRemoveSet[succ]; !inside {
				outs[succ] = struct{}{}
			}
		}
		target, ok := outputAssoc[x]
		if !ok || target == constRemovedSentinel {
			continue
		}
		if existing, ok := log[target]; ok {
			unionInto(existing, outs)
		} else {
			log[target] = outs
		}
	}
	return log
}

func (c *Circuit) incorporateOutputs(log map[int]map[int]struct{}) {
	for alias, outs := range log {
		if _, ok := c.fanout[alias]; !ok {
			c.fanout[alias] = make(map[int]struct{})
		}
		unionInto(c.fanout[alias], outs)
	}
}

// removeUnusedGates sweeps dead gates reachable (backwards) from
// aliasesToCheck: any non-output gate with empty fan-out is deleted and
// its inputs re-queued, stopping at primary inputs.
func (c *Circuit) removeUnusedGates(aliasesToCheck map[int]struct{}) (map[int]struct{}, error) {
	unused := make(map[int]struct{})
	pis := setFromSlice(c.pis)
	for len(aliasesToCheck) > 0 {
		x := popAny(aliasesToCheck)
		if _, isPI := pis[x]; isPI {
			continue
		}
		if c.IsPrimaryOutput(x) {
			continue
		}
		if len(c.fanout[x]) != 0 {
			continue
		}
		g, err := c.Gate(x)
		if err != nil {
			// already removed via another path
			continue
		}
		for _, in := range g.Inputs() {
			if _, isPI := pis[in]; !isPI {
				aliasesToCheck[in] = struct{}{}
			}
		}
		if err := c.removeGate(x); err != nil {
			return nil, err
		}
		unused[x] = struct{}{}
	}
	return unused, nil
}

// ReplaceSubcircuit splices newGates in place of toRemove: every gate fed
// by a member of toRemove is rewired through outputAssoc (which maps each
// surviving subcircuit output to its replacement alias, or to
// constRemovedSentinel if it was replaced by the constant false), dead
// gates are swept, constant propagation runs to a fixed point, and levels
// are recomputed. It returns every alias removed as a result (the
// original subcircuit gates plus anything that became dead or collapsed
// to a constant downstream). Grounded on Specification.replaceSubcircuit.
func (c *Circuit) ReplaceSubcircuit(toRemove []int, newGates []gateSpec, outputAssoc map[int]int) (map[int]struct{}, error) {
	oldSet := setFromSlice(toRemove)
	successorsToUpdate := c.DirectSuccessors(oldSet)
	unusedCandidates, err := c.SubcircuitInputs(oldSet)
	if err != nil {
		return nil, err
	}
	subcircuitOutputDict := c.getOutputsDict(toRemove, outputAssoc)

	for _, x := range toRemove {
		if err := c.removeGate(x); err != nil {
			return nil, err
		}
	}
	if err := c.insertGates(newGates); err != nil {
		return nil, err
	}
	c.incorporateOutputs(subcircuitOutputDict)

	redundant := make(map[int]struct{})
	for len(successorsToUpdate) > 0 {
		alias := popAny(successorsToUpdate)
		g, err := c.Gate(alias)
		if err != nil {
			continue
		}
		oldInputs := g.Substitute(outputAssoc)
		if g.IsConstant() {
			outputAssoc[alias] = constRemovedSentinel
			unionInto(successorsToUpdate, c.fanout[alias])
			redundant[alias] = struct{}{}
			if err := c.removeGateAux(alias, oldInputs); err != nil {
				return nil, err
			}
			unionInto(unusedCandidates, setFromSlice(oldInputs))
		}
	}

	subtract(unusedCandidates, c.pis)
	unused, err := c.removeUnusedGates(unusedCandidates)
	if err != nil {
		return nil, err
	}
	unionInto(unused, redundant)
	unionInto(unused, oldSet)
	c.updatePos(outputAssoc)
	if err := c.SetGateLevels(); err != nil {
		return nil, err
	}
	return unused, nil
}
