package strategy

import (
	"fmt"
	"strings"

	"folio/internal/indicator"
)

// Quotes resolves prices and indicator values at the current date.
type Quotes interface {
	Price(ticker string) (float64, error)
	Indicator(ticker, code string) (float64, error)
}

// SignalSyntaxError reports a signal string that cannot be parsed.
type SignalSyntaxError struct {
	Signal string
	Reason string
}

func (e *SignalSyntaxError) Error() string {
	return fmt.Sprintf("invalid signal %q: %s", e.Signal, e.Reason)
}

// Signal is a parsed trigger condition. The set of implementations is closed:
// Always, Never and Comparison.
type Signal interface {
	Eval(q Quotes) (bool, error)
	Refs() []ValueRef
	String() string
	isSignal()
}

// Always is a signal that is always true.
type Always struct{}

func (Always) Eval(Quotes) (bool, error) { return true, nil }
func (Always) Refs() []ValueRef          { return nil }
func (Always) String() string            { return "ALWAYS" }
func (Always) isSignal()                 {}

// Never is a signal that is never true.
type Never struct{}

func (Never) Eval(Quotes) (bool, error) { return false, nil }
func (Never) Refs() []ValueRef          { return nil }
func (Never) String() string            { return "NEVER" }
func (Never) isSignal()                 {}

// Op is a comparison operator.
type Op int

const (
	OpGreater Op = iota + 1
	OpLess
)

func (o Op) String() string {
	if o == OpLess {
		return "<"
	}
	return ">"
}

// ValueRef names a value resolvable at the current date: a ticker's price or
// one of its indicators.
type ValueRef interface {
	Resolve(q Quotes) (float64, error)
	Ticker() string
	String() string
	isValueRef()
}

// PriceRef resolves to the closing price of Symbol.
type PriceRef struct {
	Symbol string
}

func (r PriceRef) Resolve(q Quotes) (float64, error) { return q.Price(r.Symbol) }
func (r PriceRef) Ticker() string                    { return r.Symbol }
func (r PriceRef) String() string                    { return r.Symbol + "~PRICE" }
func (PriceRef) isValueRef()                         {}

// IndicatorRef resolves to the value of Code computed over Symbol's prices.
type IndicatorRef struct {
	Symbol string
	Code   indicator.Code
}

func (r IndicatorRef) Resolve(q Quotes) (float64, error) {
	return q.Indicator(r.Symbol, r.Code.String())
}
func (r IndicatorRef) Ticker() string { return r.Symbol }
func (r IndicatorRef) String() string { return r.Symbol + "~" + r.Code.String() }
func (IndicatorRef) isValueRef()      {}

// Comparison is true when LHS Op RHS holds at the current date.
type Comparison struct {
	LHS ValueRef
	Op  Op
	RHS ValueRef
}

func (c Comparison) Eval(q Quotes) (bool, error) {
	l, err := c.LHS.Resolve(q)
	if err != nil {
		return false, err
	}
	r, err := c.RHS.Resolve(q)
	if err != nil {
		return false, err
	}
	if c.Op == OpLess {
		return l < r, nil
	}
	return l > r, nil
}

func (c Comparison) Refs() []ValueRef { return []ValueRef{c.LHS, c.RHS} }
func (c Comparison) String() string {
	return c.LHS.String() + " " + c.Op.String() + " " + c.RHS.String()
}
func (Comparison) isSignal() {}

// ParseSignal parses "ALWAYS", "NEVER" or "<TICKER>~<FIELD> <OP> <TICKER>~<FIELD>"
// where FIELD is PRICE or an indicator code and OP is > or <. Whitespace
// around the operator is optional.
func ParseSignal(s string) (Signal, error) {
	text := strings.TrimSpace(s)
	switch strings.ToUpper(text) {
	case "ALWAYS":
		return Always{}, nil
	case "NEVER", "":
		return Never{}, nil
	}

	opIdx := strings.IndexAny(text, "<>")
	if opIdx < 0 {
		return nil, &SignalSyntaxError{Signal: s, Reason: "missing operator > or <"}
	}
	if strings.IndexAny(text[opIdx+1:], "<>") >= 0 {
		return nil, &SignalSyntaxError{Signal: s, Reason: "more than one operator"}
	}

	op := OpGreater
	if text[opIdx] == '<' {
		op = OpLess
	}
	lhs, err := parseValueRef(s, text[:opIdx])
	if err != nil {
		return nil, err
	}
	rhs, err := parseValueRef(s, text[opIdx+1:])
	if err != nil {
		return nil, err
	}
	return Comparison{LHS: lhs, Op: op, RHS: rhs}, nil
}

func parseValueRef(signal, operand string) (ValueRef, error) {
	operand = strings.ToUpper(strings.TrimSpace(operand))
	ticker, field, ok := strings.Cut(operand, "~")
	if !ok || ticker == "" || field == "" || strings.Contains(field, "~") || strings.ContainsAny(ticker, " \t") {
		return nil, &SignalSyntaxError{Signal: signal, Reason: fmt.Sprintf("operand %q is not TICKER~FIELD", operand)}
	}
	if field == "PRICE" {
		return PriceRef{Symbol: ticker}, nil
	}
	code, err := indicator.ParseCode(field)
	if err != nil {
		return nil, &SignalSyntaxError{Signal: signal, Reason: err.Error()}
	}
	return IndicatorRef{Symbol: ticker, Code: code}, nil
}
