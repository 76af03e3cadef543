package formula

import (
	"fmt"
	"log/slog"
	"strconv"

	apperrors "specview/internal/errors"
)

// Operands holds the column indices selected for each operand group
type Operands struct {
	S   []int
	BG1 []int
	BG2 []int
	I0  []int
}

func (o Operands) group(op Operand) []int {
	switch op {
	case OperandS:
		return o.S
	case OperandBG1:
		return o.BG1
	case OperandBG2:
		return o.BG2
	case OperandI0:
		return o.I0
	}
	return nil
}

// Validate checks the operand preconditions of a parsed formula: every
// referenced group must be non-empty, and S, BG1 and BG2 must select the same
// number of columns whenever two of them are referenced together.
func (e *Expression) Validate(ops Operands) error {
	for _, op := range e.Operands() {
		if len(ops.group(op)) == 0 {
			return apperrors.NewFormulaOperandError(
				fmt.Sprintf("formula uses %s but no %s column was selected", op, op)).
				WithContext("operand", string(op))
		}
	}

	pairs := [][2]Operand{
		{OperandS, OperandBG1},
		{OperandS, OperandBG2},
		{OperandBG1, OperandBG2},
	}
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		if !e.References(a) || !e.References(b) {
			continue
		}
		if na, nb := len(ops.group(a)), len(ops.group(b)); na != nb {
			return apperrors.NewFormulaOperandError(
				fmt.Sprintf("%s and %s must select the same number of columns (%d vs %d)", a, b, na, nb)).
				WithContext("operands", string(a)+","+string(b))
		}
	}
	return nil
}

// Result is an evaluated formula
type Result struct {
	// Values holds one row of computed values per input row
	Values [][]float64
	// Width is the number of computed columns
	Width int
	// Rows are the input rows with the computed values appended as text
	Rows [][]string
}

// Evaluator evaluates formulas over scan rows
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an evaluator that logs through the given logger
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger.With(slog.String("component", "formula_evaluator"))}
}

// Evaluate parses, validates and evaluates src over rows
func (ev *Evaluator) Evaluate(src string, ops Operands, rows [][]string) (*Result, error) {
	expr, err := Parse(src)
	if err != nil {
		ev.logger.Warn("formula rejected", slog.String("formula", src), slog.String("error", err.Error()))
		return nil, err
	}
	res, err := expr.Eval(ops, rows)
	if err != nil {
		ev.logger.Warn("formula evaluation failed", slog.String("formula", src), slog.String("error", err.Error()))
		return nil, err
	}

	ev.logger.Debug("formula evaluated",
		slog.String("formula", src),
		slog.Int("rows", len(res.Rows)),
		slog.Int("width", res.Width))
	return res, nil
}

// Evaluate evaluates src over rows and returns the rows with the computed
// columns appended
func Evaluate(src string, ops Operands, rows [][]string) ([][]string, error) {
	res, err := NewEvaluator(nil).Evaluate(src, ops, rows)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Eval validates the operands and evaluates the expression element-wise
func (e *Expression) Eval(ops Operands, rows [][]string) (*Result, error) {
	if err := e.Validate(ops); err != nil {
		return nil, err
	}

	env := &evalEnv{ops: ops, rows: rows, cache: make(map[Operand]*matrix)}
	m, err := env.eval(e.Root)
	if err != nil {
		return nil, err
	}
	if m.scalar {
		m = m.broadcastRows(len(rows))
	}

	res := &Result{
		Values: make([][]float64, len(rows)),
		Width:  m.cols,
		Rows:   make([][]string, len(rows)),
	}
	for i, row := range rows {
		values := m.row(i)
		res.Values[i] = values

		out := make([]string, 0, len(row)+len(values))
		out = append(out, row...)
		for _, v := range values {
			out = append(out, FormatValue(v))
		}
		res.Rows[i] = out
	}
	return res, nil
}

// FormatValue renders a computed value using the shortest representation
// that round-trips
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// matrix is a dense row-major block of values, or a scalar
type matrix struct {
	rows, cols int
	data       []float64
	scalar     bool
	value      float64
}

func scalarMatrix(v float64) *matrix {
	return &matrix{scalar: true, value: v}
}

func (m *matrix) at(r, c int) float64 {
	if m.scalar {
		return m.value
	}
	if m.cols == 1 {
		return m.data[r]
	}
	return m.data[r*m.cols+c]
}

func (m *matrix) row(r int) []float64 {
	out := make([]float64, m.cols)
	copy(out, m.data[r*m.cols:(r+1)*m.cols])
	return out
}

func (m *matrix) broadcastRows(n int) *matrix {
	out := &matrix{rows: n, cols: 1, data: make([]float64, n)}
	for i := range out.data {
		out.data[i] = m.value
	}
	return out
}

type evalEnv struct {
	ops   Operands
	rows  [][]string
	cache map[Operand]*matrix
}

func (env *evalEnv) eval(n Node) (*matrix, error) {
	switch node := n.(type) {
	case *NumberNode:
		return scalarMatrix(node.Value), nil
	case *OperandNode:
		return env.load(node.Name)
	case *UnaryNode:
		inner, err := env.eval(node.Operand)
		if err != nil {
			return nil, err
		}
		if node.Op != TokenMinus {
			return inner, nil
		}
		return apply(scalarMatrix(0), inner, TokenMinus)
	case *BinaryNode:
		left, err := env.eval(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := env.eval(node.Right)
		if err != nil {
			return nil, err
		}
		return apply(left, right, node.Op)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

// load reads an operand's columns as numbers. I0 is reduced to its first
// column so it divides every column of the other groups.
func (env *evalEnv) load(op Operand) (*matrix, error) {
	if m, ok := env.cache[op]; ok {
		return m, nil
	}

	group := env.ops.group(op)
	if op == OperandI0 && len(group) > 1 {
		group = group[:1]
	}

	m := &matrix{rows: len(env.rows), cols: len(group), data: make([]float64, 0, len(env.rows)*len(group))}
	for r, row := range env.rows {
		for _, idx := range group {
			if idx < 0 || idx >= len(row) {
				return nil, apperrors.NewFormulaOperandError(
					fmt.Sprintf("row %d has no column %d for operand %s", r+1, idx, op)).
					WithContext("operand", string(op))
			}
			v, err := strconv.ParseFloat(row[idx], 64)
			if err != nil {
				return nil, apperrors.NewFormulaOperandError(
					fmt.Sprintf("row %d column %d value %q of operand %s is not numeric", r+1, idx, row[idx], op)).
					WithContext("operand", string(op))
			}
			m.data = append(m.data, v)
		}
	}

	env.cache[op] = m
	return m, nil
}

// apply combines two operands element-wise. Scalars broadcast everywhere and
// single-column blocks broadcast across columns.
func apply(a, b *matrix, op TokenType) (*matrix, error) {
	f := binaryFunc(op)

	if a.scalar && b.scalar {
		return scalarMatrix(f(a.value, b.value)), nil
	}

	rows, cols := a.rows, a.cols
	if a.scalar {
		rows, cols = b.rows, b.cols
	} else if !b.scalar {
		switch {
		case a.cols == b.cols:
		case a.cols == 1:
			cols = b.cols
		case b.cols == 1:
		default:
			return nil, apperrors.NewFormulaOperandError(
				fmt.Sprintf("cannot combine %d columns with %d columns", a.cols, b.cols))
		}
	}

	out := &matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.data[r*cols+c] = f(a.at(r, c), b.at(r, c))
		}
	}
	return out, nil
}

func binaryFunc(op TokenType) func(x, y float64) float64 {
	switch op {
	case TokenPlus:
		return func(x, y float64) float64 { return x + y }
	case TokenMinus:
		return func(x, y float64) float64 { return x - y }
	case TokenStar:
		return func(x, y float64) float64 { return x * y }
	default:
		return func(x, y float64) float64 { return x / y }
	}
}
