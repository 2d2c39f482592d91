package settings

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// ParseHCL reads HCL text. Each block becomes a section named by its
// first label, or its type when unlabeled; top-level attributes go to
// [general]. Values are rendered back into the INI text convention before
// typing, so ["gini", "shap"] is a list and [0.01, 10] is a range.
//
//	general { seed = 42 }
//	critic  { critic_steps = ["explain", "measure"] }
func ParseHCL(data []byte, filename string) (*Settings, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.WrapConfigurationError(diags, "", "", "invalid HCL in "+filename)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, errors.NewConfigurationError("", "", "unsupported HCL body in "+filename)
	}

	s := New()
	if len(body.Attributes) > 0 {
		if err := addAttributes(s.Add(General), body.Attributes); err != nil {
			return nil, err
		}
	}
	for _, block := range body.Blocks {
		name := block.Type
		if len(block.Labels) > 0 {
			name = block.Labels[0]
		}
		if len(block.Body.Blocks) > 0 {
			return nil, errors.NewConfigurationError(name, "", "nested blocks are not supported")
		}
		if err := addAttributes(s.Add(name), block.Body.Attributes); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func addAttributes(sec *Section, attrs hclsyntax.Attributes) error {
	list := make([]*hclsyntax.Attribute, 0, len(attrs))
	for _, a := range attrs {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].SrcRange.Start.Byte < list[j].SrcRange.Start.Byte
	})

	for _, a := range list {
		val, diags := a.Expr.Value(&hcl.EvalContext{})
		if diags.HasErrors() {
			return errors.WrapConfigurationError(diags, sec.Name(), a.Name, "cannot evaluate")
		}
		text, err := render(val)
		if err != nil {
			return errors.WrapConfigurationError(err, sec.Name(), a.Name, "unsupported value")
		}
		sec.Set(a.Name, text)
	}
	return nil
}

// render converts a cty value into setting text.
func render(v cty.Value) (string, error) {
	if v.IsNull() {
		return "none", nil
	}
	if !v.IsKnown() {
		return "", errors.New("value is unknown")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return "", errors.Wrap(err, "number")
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return formatNumber(f), nil

	case ty == cty.Bool:
		if v.True() {
			return "true", nil
		}
		return "false", nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		items := make([]string, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, el := it.Element()
			s, err := render(el)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return strings.Join(items, ", "), nil

	default:
		return "", errors.Newf("unsupported type %s", ty.FriendlyName())
	}
}
