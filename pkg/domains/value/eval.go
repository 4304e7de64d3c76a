package value

import "github.com/aretw0/fixpoint/pkg/cfa"

// eval computes the value of e when it is determined by the known variables.
func eval(e cfa.Expr, s *State) (int64, bool) {
	switch x := e.(type) {
	case cfa.Const:
		return x.Value, true
	case cfa.Var:
		return s.Get(x.Name)
	case cfa.Unary:
		v, ok := eval(x.X, s)
		if !ok {
			return 0, false
		}
		if x.Op == "!" {
			return boolean(v == 0), true
		}
		return -v, true
	case cfa.Binary:
		return evalBinary(x, s)
	}
	return 0, false
}

func evalBinary(b cfa.Binary, s *State) (int64, bool) {
	l, lok := eval(b.X, s)
	r, rok := eval(b.Y, s)
	switch b.Op {
	case "&&":
		if (lok && l == 0) || (rok && r == 0) {
			return 0, true
		}
		if lok && rok {
			return 1, true
		}
		return 0, false
	case "||":
		if (lok && l != 0) || (rok && r != 0) {
			return 1, true
		}
		if lok && rok {
			return 0, true
		}
		return 0, false
	}
	if !lok || !rok {
		return 0, false
	}
	switch b.Op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "==":
		return boolean(l == r), true
	case "!=":
		return boolean(l != r), true
	case "<":
		return boolean(l < r), true
	case "<=":
		return boolean(l <= r), true
	case ">":
		return boolean(l > r), true
	case ">=":
		return boolean(l >= r), true
	}
	return 0, false
}

// refine binds variables fixed by an assumed condition, e.g. [x == 3].
func refine(cond cfa.Expr, s *State) *State {
	b, ok := cond.(cfa.Binary)
	if !ok {
		return s
	}
	switch b.Op {
	case "&&":
		return refine(b.Y, refine(b.X, s))
	case "==":
		if v, ok := b.X.(cfa.Var); ok {
			if c, known := eval(b.Y, s); known {
				if _, bound := s.Get(v.Name); !bound {
					return s.with(v.Name, c)
				}
			}
		}
		if v, ok := b.Y.(cfa.Var); ok {
			if c, known := eval(b.X, s); known {
				if _, bound := s.Get(v.Name); !bound {
					return s.with(v.Name, c)
				}
			}
		}
	}
	return s
}

func boolean(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
