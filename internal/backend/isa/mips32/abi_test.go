package mips32

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

func TestParameterLocations(t *testing.T) {
	for _, tc := range []struct {
		name  string
		types []ir.DataType
		exp   []backend.Location
	}{
		{name: "none"},
		{
			name:  "ints",
			types: []ir.DataType{ir.TypeInt32, ir.TypeReference, ir.TypeInt32, ir.TypeInt32},
			exp: []backend.Location{
				backend.RegisterLocation(a1), backend.RegisterLocation(a2), backend.RegisterLocation(a3),
				backend.StackSlot(16),
			},
		},
		{
			name:  "int long",
			types: []ir.DataType{ir.TypeInt32, ir.TypeInt64},
			exp:   []backend.Location{backend.RegisterLocation(a1), backend.RegisterPairLocation(a2, a3)},
		},
		{
			name:  "long skips a1",
			types: []ir.DataType{ir.TypeInt64, ir.TypeInt32},
			exp:   []backend.Location{backend.RegisterPairLocation(a2, a3), backend.StackSlot(12)},
		},
		{
			name:  "long after two ints",
			types: []ir.DataType{ir.TypeInt32, ir.TypeInt32, ir.TypeInt64},
			exp: []backend.Location{
				backend.RegisterLocation(a1), backend.RegisterLocation(a2), backend.DoubleStackSlot(12),
			},
		},
		{
			name:  "mixed",
			types: []ir.DataType{ir.TypeInt64, ir.TypeInt64, ir.TypeInt32, ir.TypeFloat64},
			exp: []backend.Location{
				backend.RegisterPairLocation(a2, a3), backend.DoubleStackSlot(12), backend.StackSlot(20),
				backend.FpuRegisterLocation(8),
			},
		},
		{
			name: "floats",
			types: []ir.DataType{
				ir.TypeFloat32, ir.TypeFloat64, ir.TypeFloat32, ir.TypeFloat32, ir.TypeFloat32, ir.TypeFloat32,
				ir.TypeFloat32, ir.TypeFloat64,
			},
			exp: []backend.Location{
				backend.FpuRegisterLocation(8), backend.FpuRegisterLocation(10), backend.FpuRegisterLocation(12),
				backend.FpuRegisterLocation(14), backend.FpuRegisterLocation(16), backend.FpuRegisterLocation(18),
				backend.StackSlot(32), backend.DoubleStackSlot(36),
			},
		},
		{
			name:  "floats do not take core registers",
			types: []ir.DataType{ir.TypeFloat32, ir.TypeInt32, ir.TypeFloat64, ir.TypeInt64},
			exp: []backend.Location{
				backend.FpuRegisterLocation(8), backend.RegisterLocation(a1), backend.FpuRegisterLocation(10),
				backend.RegisterPairLocation(a2, a3),
			},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			actual := parameterLocations(tc.types)
			require.Equal(t, len(tc.exp), len(actual))
			for i := range tc.exp {
				require.Equal(t, tc.exp[i], actual[i], "parameter %d", i)
			}
		})
	}
}

func TestRuntimeArgs(t *testing.T) {
	for _, tc := range []struct {
		name  string
		types []ir.DataType
		exp   []backend.Location
	}{
		{
			name:  "ints",
			types: []ir.DataType{ir.TypeInt32, ir.TypeReference, ir.TypeInt32, ir.TypeInt32},
			exp: []backend.Location{
				backend.RegisterLocation(a0), backend.RegisterLocation(a1), backend.RegisterLocation(a2),
				backend.RegisterLocation(a3),
			},
		},
		{
			name:  "longs",
			types: []ir.DataType{ir.TypeInt64, ir.TypeInt64},
			exp:   []backend.Location{backend.RegisterPairLocation(a0, a1), backend.RegisterPairLocation(a2, a3)},
		},
		{
			name:  "aligned pair",
			types: []ir.DataType{ir.TypeInt32, ir.TypeInt64},
			exp:   []backend.Location{backend.RegisterLocation(a0), backend.RegisterPairLocation(a2, a3)},
		},
		{
			name:  "floats",
			types: []ir.DataType{ir.TypeFloat32, ir.TypeFloat64},
			exp:   []backend.Location{backend.FpuRegisterLocation(12), backend.FpuRegisterLocation(14)},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var args runtimeArgs
			for i, typ := range tc.types {
				require.Equal(t, tc.exp[i], args.next(typ), "argument %d", i)
			}
		})
	}

	t.Run("too many", func(t *testing.T) {
		for _, types := range [][]ir.DataType{
			{ir.TypeInt32, ir.TypeInt32, ir.TypeInt32, ir.TypeInt32, ir.TypeInt32},
			{ir.TypeInt32, ir.TypeInt32, ir.TypeInt32, ir.TypeInt64},
			{ir.TypeFloat32, ir.TypeFloat32, ir.TypeFloat32},
		} {
			var args runtimeArgs
			require.Panics(t, func() {
				for _, typ := range types {
					args.next(typ)
				}
			})
		}
	})
}

func TestReturnLocation(t *testing.T) {
	require.Equal(t, backend.NoLocation(), returnLocation(ir.TypeVoid))
	require.Equal(t, backend.RegisterLocation(v0), returnLocation(ir.TypeInt32))
	require.Equal(t, backend.RegisterLocation(v0), returnLocation(ir.TypeReference))
	require.Equal(t, backend.RegisterPairLocation(v0, v1), returnLocation(ir.TypeInt64))
	require.Equal(t, backend.FpuRegisterLocation(0), returnLocation(ir.TypeFloat32))
	require.Equal(t, backend.FpuRegisterLocation(0), returnLocation(ir.TypeFloat64))
}
