package ciops

// SubcircuitInputs returns the free inputs of the gate set aliases: every
// alias fed into a gate in the set by a gate outside the set.
func (c *Circuit) SubcircuitInputs(aliases map[int]struct{}) (map[int]struct{}, error) {
	inputs := make(map[int]struct{})
	for alias := range aliases {
		g, err := c.Gate(alias)
		if err != nil {
			return nil, err
		}
		for _, in := range g.Inputs() {
			if _, inside := aliases[in]; !inside {
				inputs[in] = struct{}{}
			}
		}
	}
	return inputs, nil
}

// DirectSuccessors returns every gate outside aliases that takes a member
// of aliases as an input.
func (c *Circuit) DirectSuccessors(aliases map[int]struct{}) map[int]struct{} {
	successors := make(map[int]struct{})
	for alias := range aliases {
		for succ := range c.fanout[alias] {
			if _, inside := aliases[succ]; !inside {
				successors[succ] = struct{}{}
			}
		}
	}
	return successors
}

// SubcircuitOutputs returns the subset of aliases that must remain
// externally visible: primary outputs, and any gate with fan-out outside
// the set.
func (c *Circuit) SubcircuitOutputs(aliases map[int]struct{}) map[int]struct{} {
	outputs := make(map[int]struct{})
	for alias := range aliases {
		if c.IsPrimaryOutput(alias) {
			outputs[alias] = struct{}{}
			continue
		}
		for succ := range c.fanout[alias] {
			if _, inside := aliases[succ]; !inside {
				outputs[alias] = struct{}{}
				break
			}
		}
	}
	return outputs
}

// getConnected walks upward from alias (excluding gates in internal),
// bounded below by the minimum level of gates, collecting (input, alias)
// pairs whenever the walk reaches a member of gates -- a potential
// feedback path from an output of the candidate subcircuit back into one
// of its own inputs.
func (c *Circuit) getConnected(alias int, gates, internal map[int]struct{}) []CyclePair {
	level := 1 << 30
	for g := range gates {
		if lvl := c.levels[g]; lvl < level {
			level = lvl
		}
	}
	var pairs []CyclePair
	if level >= c.levels[alias] {
		return pairs
	}
	toCheck := []int{alias}
	seen := make(map[int]struct{}, len(internal))
	for g := range internal {
		seen[g] = struct{}{}
	}
	for len(toCheck) > 0 {
		current := toCheck[len(toCheck)-1]
		toCheck = toCheck[:len(toCheck)-1]
		seen[current] = struct{}{}
		g, err := c.Gate(current)
		if err != nil {
			continue
		}
		for _, in := range g.Inputs() {
			if _, isGate := gates[in]; isGate {
				pairs = append(pairs, CyclePair{Output: in, Input: alias})
				continue
			}
			if _, ok := seen[in]; !ok {
				seen[in] = struct{}{}
				if c.levels[in] > level {
					toCheck = append(toCheck, in)
				}
			}
		}
	}
	return pairs
}

// CyclePair records that Input (a subcircuit input) depends, through a
// path outside the subcircuit, on Output (a subcircuit output) -- so
// substituting a new definition for Output before Input has been
// recomputed would close a combinational cycle.
type CyclePair struct {
	Output int
	Input  int
}

// PotentialCycles computes, for a candidate subcircuit with the given
// inputs/outputs/internal gates, the list of (output, input) feedback
// pairs a synthesised replacement must not introduce.
func (c *Circuit) PotentialCycles(inputs, outputs, internal map[int]struct{}) []CyclePair {
	var candidates []CyclePair
	for in := range inputs {
		candidates = append(candidates, c.getConnected(in, outputs, internal)...)
	}
	return candidates
}
