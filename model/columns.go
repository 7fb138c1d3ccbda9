package model

import (
	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
)

// primitiveColumnType maps a typechecked primitive plus any resolved
// type-hint annotations to its physical column type (spec §3/§4.C
// phase 2).
func primitiveColumnType(p typecheck.Primitive, hint *TypeHint) ColumnType {
	switch p {
	case typecheck.Boolean:
		return BooleanType{}
	case typecheck.Int:
		bits := 32
		if hint != nil && hint.Bits != 0 {
			bits = hint.Bits
		}
		return IntType{Bits: bits}
	case typecheck.Float:
		bits := 53
		if hint != nil && hint.Bits != 0 {
			bits = hint.Bits
		}
		return FloatType{Bits: bits}
	case typecheck.Decimal:
		precision, scale := 65, 30
		if hint != nil && hint.Precision != 0 {
			precision, scale = hint.Precision, hint.Scale
		}
		return NumericType{Precision: precision, Scale: scale}
	case typecheck.String:
		var maxLen *int
		if hint != nil && hint.MaxLen != 0 {
			ml := hint.MaxLen
			maxLen = &ml
		}
		return StringType{MaxLen: maxLen}
	case typecheck.LocalTime:
		return TimeType{}
	case typecheck.LocalDate:
		return DateType{}
	case typecheck.LocalDateTime:
		return TimestampType{TZ: false}
	case typecheck.Instant:
		return TimestampType{TZ: true}
	case typecheck.Json:
		return JSONType{}
	case typecheck.Blob:
		return BlobType{}
	case typecheck.Uuid:
		return UUIDType{}
	case typecheck.Vector:
		size, fn := 3, "vector_l2_ops"
		if hint != nil && hint.VectorSize != 0 {
			size = hint.VectorSize
		}
		if hint != nil && hint.DistanceFunc != "" {
			fn = hint.DistanceFunc
		}
		return VectorType{Size: size, DistanceFunc: fn}
	default:
		return StringType{}
	}
}

// extractHint reads the @bits/@size/@precision/@vector annotations off
// a field's resolved annotation list into a TypeHint, or nil if none
// are present.
func extractHint(anns []*typecheck.ResolvedAnnotation) *TypeHint {
	var h TypeHint
	found := false
	for _, a := range anns {
		switch a.Name {
		case "bits":
			if v, ok := a.Params[""]; ok {
				if f, ok := numberLiteral(v); ok {
					h.Bits = int(f)
					found = true
				}
			}
		case "size":
			if v, ok := a.Params[""]; ok {
				if f, ok := numberLiteral(v); ok {
					h.MaxLen = int(f)
					found = true
				}
			}
		case "precision":
			if v, ok := a.Params["precision"]; ok {
				if f, ok := numberLiteral(v); ok {
					h.Precision = int(f)
					found = true
				}
			}
			if v, ok := a.Params["scale"]; ok {
				if f, ok := numberLiteral(v); ok {
					h.Scale = int(f)
					found = true
				}
			}
		case "vector":
			if v, ok := a.Params["size"]; ok {
				if f, ok := numberLiteral(v); ok {
					h.VectorSize = int(f)
					found = true
				}
			}
			if v, ok := a.Params["distanceFunction"]; ok {
				if s, ok := stringLiteral(v); ok {
					h.DistanceFunc = s
					found = true
				}
			}
		}
	}
	if !found {
		return nil
	}
	return &h
}

func numberLiteral(te typecheck.TypedExpr) (float64, bool) {
	lit, ok := te.Expr.(*ast.Literal)
	if !ok || lit.Kind != ast.LitNumber {
		return 0, false
	}
	return lit.N, true
}

func stringLiteral(te typecheck.TypedExpr) (string, bool) {
	lit, ok := te.Expr.(*ast.Literal)
	if !ok || lit.Kind != ast.LitString {
		return "", false
	}
	return lit.S, true
}
