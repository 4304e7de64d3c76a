package dsl

// FunctionBuilder provides a fluent API for configuring a function.
// Locations are created on first mention. Unless set explicitly the entry is
// the first location mentioned and the exit is the last one.
type FunctionBuilder struct {
	name    string
	builder *Builder
	order   []string
	seen    map[string]bool
	errors  map[string]bool
	entry   string
	exit    string
	edges   []edgeSpec
}

type edgeSpec struct {
	from, to string
	label    string
	callee   string
}

func (f *FunctionBuilder) touch(names ...string) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	for _, n := range names {
		if !f.seen[n] {
			f.seen[n] = true
			f.order = append(f.order, n)
		}
	}
}

// Entry sets the entry location.
func (f *FunctionBuilder) Entry(name string) *FunctionBuilder {
	f.touch(name)
	f.entry = name
	return f
}

// Exit sets the exit location.
func (f *FunctionBuilder) Exit(name string) *FunctionBuilder {
	f.touch(name)
	f.exit = name
	return f
}

// Edge adds an edge labelled with an assignment, an assume ("[cond]") or nothing.
func (f *FunctionBuilder) Edge(from, to, label string) *FunctionBuilder {
	f.touch(from, to)
	f.edges = append(f.edges, edgeSpec{from: from, to: to, label: label})
	return f
}

// Call adds a call from location "from" to callee, returning to location "to".
func (f *FunctionBuilder) Call(from, to, callee string) *FunctionBuilder {
	f.touch(from, to)
	f.edges = append(f.edges, edgeSpec{from: from, to: to, callee: callee})
	return f
}

// Error marks locations as target locations.
func (f *FunctionBuilder) Error(names ...string) *FunctionBuilder {
	f.touch(names...)
	if f.errors == nil {
		f.errors = make(map[string]bool)
	}
	for _, n := range names {
		f.errors[n] = true
	}
	return f
}

// Function switches to another function of the same program.
func (f *FunctionBuilder) Function(name string) *FunctionBuilder {
	return f.builder.Function(name)
}

func (f *FunctionBuilder) entryName() string {
	if f.entry != "" {
		return f.entry
	}
	return f.order[0]
}

func (f *FunctionBuilder) exitName() string {
	if f.exit != "" {
		return f.exit
	}
	return f.order[len(f.order)-1]
}
