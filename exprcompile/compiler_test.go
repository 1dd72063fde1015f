package exprcompile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub004/ir"
)

func TestCompileConstantLong(t *testing.T) {
	tree := ir.NewExpressionTree()
	root := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 5}})
	tree.SetRoot(root)

	compiled, err := Compile(tree, nil)
	require.NoError(t, err)
	require.Equal(t, Single(ir.ValueTypeLong), compiled.ReturnType)
	require.Equal(t, []OpCode{OpLoadConstant}, compiled.Instructions)
}

func TestCompileLongPlusDoubleInsertsOneCast(t *testing.T) {
	tree := ir.NewExpressionTree()
	l := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 1}})
	r := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeDouble, Double: 2.0}})
	op := tree.Add(ir.ExpressionNode{Kind: ir.NodeOperation, Op: ir.OpAdd, Lhs: l, Rhs: r})
	tree.SetRoot(op)

	compiled, err := Compile(tree, nil)
	require.NoError(t, err)
	require.Equal(t, Single(ir.ValueTypeDouble), compiled.ReturnType)

	casts := 0
	for _, i := range compiled.Instructions {
		if i == OpCastLeftLongToDouble || i == OpCastRightLongToDouble {
			casts++
		}
	}
	require.Equal(t, 1, casts)
	require.Contains(t, compiled.Instructions, OpDoubleAddDouble)
}

func TestCompileDoublePlusLongInsertsRightCast(t *testing.T) {
	tree := ir.NewExpressionTree()
	l := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeDouble, Double: 2.0}})
	r := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 1}})
	op := tree.Add(ir.ExpressionNode{Kind: ir.NodeOperation, Op: ir.OpAdd, Lhs: l, Rhs: r})
	tree.SetRoot(op)

	compiled, err := Compile(tree, nil)
	require.NoError(t, err)
	require.Equal(t, Single(ir.ValueTypeDouble), compiled.ReturnType)
	require.Contains(t, compiled.Instructions, OpCastRightLongToDouble)
}

func TestCompileStringOperandsFails(t *testing.T) {
	tree := ir.NewExpressionTree()
	l := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeString, Str: "a"}})
	r := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeString, Str: "b"}})
	op := tree.Add(ir.ExpressionNode{Kind: ir.NodeOperation, Op: ir.OpAdd, Lhs: l, Rhs: r})
	tree.SetRoot(op)

	_, err := Compile(tree, nil)
	require.Error(t, err)
	var uoe *UnsupportedOperandsError
	require.ErrorAs(t, err, &uoe)
}

func TestCompileEmptyListFails(t *testing.T) {
	tree := ir.NewExpressionTree()
	lst := tree.Add(ir.ExpressionNode{Kind: ir.NodeListConstructor, ListItems: nil})
	tree.SetRoot(lst)

	_, err := Compile(tree, nil)
	require.ErrorIs(t, err, ErrEmptyListConstructor)
}

func TestCompileHeterogenousListFails(t *testing.T) {
	tree := ir.NewExpressionTree()
	a := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 1}})
	b := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeString, Str: "x"}})
	lst := tree.Add(ir.ExpressionNode{Kind: ir.NodeListConstructor, ListItems: []ir.ExpressionID{a, b}})
	tree.SetRoot(lst)

	_, err := Compile(tree, nil)
	require.ErrorIs(t, err, ErrHeterogenousList)
}

func TestCompileListIndexAndRange(t *testing.T) {
	vt := map[ir.Variable]ExpressionValueType{0: List(ir.ValueTypeLong)}
	tree := ir.NewExpressionTree()
	idx := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 0}})
	node := tree.Add(ir.ExpressionNode{Kind: ir.NodeListIndex, ListVariable: 0, IndexExpr: idx})
	tree.SetRoot(node)

	compiled, err := Compile(tree, vt)
	require.NoError(t, err)
	require.Equal(t, Single(ir.ValueTypeLong), compiled.ReturnType)

	tree2 := ir.NewExpressionTree()
	from := tree2.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 0}})
	to := tree2.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 2}})
	node2 := tree2.Add(ir.ExpressionNode{Kind: ir.NodeListIndexRange, ListVariable: 0, FromExpr: from, ToExpr: to})
	tree2.SetRoot(node2)

	compiled2, err := Compile(tree2, vt)
	require.NoError(t, err)
	require.Equal(t, List(ir.ValueTypeLong), compiled2.ReturnType)
}

func TestCompileBuiltins(t *testing.T) {
	tree := ir.NewExpressionTree()
	arg := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeDouble, Double: -3.5}})
	call := tree.Add(ir.ExpressionNode{Kind: ir.NodeBuiltInCall, BuiltIn: ir.BuiltInAbs, Args: []ir.ExpressionID{arg}})
	tree.SetRoot(call)

	compiled, err := Compile(tree, nil)
	require.NoError(t, err)
	require.Equal(t, Single(ir.ValueTypeDouble), compiled.ReturnType)
	require.Contains(t, compiled.Instructions, OpMathAbsDouble)
}

func TestCompileCeilOnLongFails(t *testing.T) {
	tree := ir.NewExpressionTree()
	arg := tree.Add(ir.ExpressionNode{Kind: ir.NodeConstant, Constant: ir.Value{Type: ir.ValueTypeLong, Long: 3}})
	call := tree.Add(ir.ExpressionNode{Kind: ir.NodeBuiltInCall, BuiltIn: ir.BuiltInCeil, Args: []ir.ExpressionID{arg}})
	tree.SetRoot(call)

	_, err := Compile(tree, nil)
	require.ErrorIs(t, err, ErrUnsupportedArgsForBuiltin)
}
