package compiler

// Definition is a callable block opened by DEF.
//
// PatchSite is the buffer index where the skip jump is inserted when the
// block closes. Entry addresses the first body instruction, which after the
// insertion sits right behind Skip.
type Definition struct {
	Name      string
	PatchSite int
	Skip      *Instruction
	Entry     *Label
	Scope     *Scope
	Line      int
	Closed    bool

	// condDepth is the number of open conditionals when the block opened.
	condDepth int
}

// Definitions is a flat namespace of definitions plus the stack of the ones
// whose bodies are still being emitted.
type Definitions struct {
	byName map[string]*Definition
	order  []*Definition
	open   []*Definition
}

func NewDefinitions() *Definitions {
	return &Definitions{byName: make(map[string]*Definition)}
}

// Begin registers name and pushes it onto the open stack. A name can only
// ever be defined once.
func (d *Definitions) Begin(name string, patchSite int, skip *Instruction) (*Definition, error) {
	if _, ok := d.byName[name]; ok {
		return nil, failf(ErrDuplicateDefinition, name, "definition already exists")
	}
	def := &Definition{
		Name:      name,
		PatchSite: patchSite,
		Skip:      skip,
		Entry:     After(skip),
	}
	d.byName[name] = def
	d.order = append(d.order, def)
	d.open = append(d.open, def)
	return def, nil
}

// Current returns the innermost open definition.
func (d *Definitions) Current() (*Definition, bool) {
	if len(d.open) == 0 {
		return nil, false
	}
	return d.open[len(d.open)-1], true
}

// End pops the innermost open definition. The record stays resolvable.
func (d *Definitions) End() (*Definition, error) {
	def, ok := d.Current()
	if !ok {
		return nil, failf(ErrNotInDefinition, "ENDDEF", "no definition is open")
	}
	d.open = d.open[:len(d.open)-1]
	def.Closed = true
	return def, nil
}

// Resolve looks up a definition by name, open or closed.
func (d *Definitions) Resolve(name string) (*Definition, error) {
	def, ok := d.byName[name]
	if !ok {
		return nil, failf(ErrUnresolvedSymbol, name, "definition not found")
	}
	return def, nil
}

func (d *Definitions) Depth() int { return len(d.open) }

// All returns every definition in declaration order.
func (d *Definitions) All() []*Definition { return d.order }

// Condition is an IF block. It lives only between IF and ENDIF.
type Condition struct {
	PatchSite int
	Skip      *Instruction
	Body      *Label
	Line      int

	// defDepth is the number of open definitions when the block opened.
	defDepth int
}

// Conditions is the stack of open IF blocks.
type Conditions struct {
	open []*Condition
}

func (c *Conditions) Open(cond *Condition) {
	c.open = append(c.open, cond)
}

func (c *Conditions) Current() (*Condition, bool) {
	if len(c.open) == 0 {
		return nil, false
	}
	return c.open[len(c.open)-1], true
}

// Close pops the innermost open condition.
func (c *Conditions) Close() (*Condition, error) {
	cond, ok := c.Current()
	if !ok {
		return nil, failf(ErrNotInCondition, "ENDIF", "no IF is open")
	}
	c.open = c.open[:len(c.open)-1]
	return cond, nil
}

func (c *Conditions) Depth() int { return len(c.open) }
