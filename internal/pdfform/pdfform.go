// Package pdfform fills AcroForm fields in a PDF template. It resolves the
// template's field names against a canonical-name mapping, writes values
// into matching fields, and serializes a filled copy.
package pdfform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	// ErrNoAcroForm means the document carries no interactive field list.
	// The form may be XFA-based, image-only, or not fillable at all; the
	// remediation is to re-derive the template and mapping, so callers keep
	// this distinct from generic fill failures.
	ErrNoAcroForm = errors.New("document has no AcroForm field list (XFA or non-fillable form)")

	// ErrFlattenNotSupported is returned when a caller requests flattening.
	// Field flattening is intentionally not implemented; rejecting the flag
	// beats silently returning an editable document.
	ErrFlattenNotSupported = errors.New("form flattening is not supported")
)

// Field describes one interactive form field.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Resolve matches the form's field identifiers against the canonical field
// map and returns the value to write per field identifier. Matching is
// best-effort: fields without a canonical counterpart are left untouched,
// canonical keys without a value resolve to the empty string, and an empty
// map resolves nothing. Canonical keys are scanned in sorted order so the
// result is deterministic even if two keys map to the same identifier.
func Resolve(formFields []string, fieldMap map[string]string, data map[string]any) map[string]any {
	resolved := make(map[string]any)
	if len(fieldMap) == 0 {
		return resolved
	}

	canonicalKeys := make([]string, 0, len(fieldMap))
	for key := range fieldMap {
		canonicalKeys = append(canonicalKeys, key)
	}
	sort.Strings(canonicalKeys)

	for _, fieldID := range formFields {
		for _, key := range canonicalKeys {
			if fieldMap[key] != fieldID {
				continue
			}
			value, ok := data[key]
			if !ok || value == nil {
				value = ""
			}
			resolved[fieldID] = value
			break
		}
	}

	return resolved
}

// Fill writes the resolvable canonical values into the template's AcroForm
// fields and returns the filled document bytes. The document is marked
// NeedAppearances so viewers regenerate field appearances. flatten=true is
// rejected with ErrFlattenNotSupported.
func Fill(template []byte, fieldMap map[string]string, data map[string]any, flatten bool) ([]byte, error) {
	if flatten {
		return nil, ErrFlattenNotSupported
	}

	ctx, acroDict, fieldDicts, err := readForm(bytes.NewReader(template))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fieldDicts))
	for name := range fieldDicts {
		names = append(names, name)
	}

	resolved := Resolve(names, fieldMap, data)
	for name, value := range resolved {
		setFieldValue(fieldDicts[name], value)
	}

	acroDict["NeedAppearances"] = types.Boolean(true)

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write filled document: %w", err)
	}

	return buf.Bytes(), nil
}

// ListFields returns the name and type of every interactive field in the
// document, for offline field-map derivation.
func ListFields(rs io.ReadSeeker) ([]Field, error) {
	_, _, fieldDicts, err := readForm(rs)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(fieldDicts))
	for name, d := range fieldDicts {
		fieldType := ""
		if ft := d.NameEntry("FT"); ft != nil {
			fieldType = *ft
		}
		fields = append(fields, Field{Name: name, Type: fieldType})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	return fields, nil
}

// readForm parses the document and returns its AcroForm dictionary plus the
// named field dictionaries. ErrNoAcroForm when the field list is absent or
// empty.
func readForm(rs io.ReadSeeker) (*model.Context, types.Dict, map[string]types.Dict, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to validate document: %w", err)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read document catalog: %w", err)
	}

	obj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, nil, ErrNoAcroForm
	}
	acroDict, err := ctx.DereferenceDict(obj)
	if err != nil || acroDict == nil {
		return nil, nil, nil, ErrNoAcroForm
	}

	fieldsObj, found := acroDict.Find("Fields")
	if !found {
		return nil, nil, nil, ErrNoAcroForm
	}
	fieldArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil || len(fieldArray) == 0 {
		return nil, nil, nil, ErrNoAcroForm
	}

	fieldDicts := make(map[string]types.Dict, len(fieldArray))
	for _, fieldObj := range fieldArray {
		d, err := ctx.DereferenceDict(fieldObj)
		if err != nil || d == nil {
			continue
		}
		name, err := fieldName(ctx, d)
		if err != nil || name == "" {
			continue
		}
		fieldDicts[name] = d
	}

	return ctx, acroDict, fieldDicts, nil
}

func fieldName(ctx *model.Context, d types.Dict) (string, error) {
	obj, found := d.Find("T")
	if !found {
		return "", nil
	}
	obj, err := ctx.Dereference(obj)
	if err != nil {
		return "", err
	}

	switch t := obj.(type) {
	case types.StringLiteral:
		s, err := types.StringLiteralToString(t)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case types.HexLiteral:
		s, err := types.HexLiteralToString(t)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	default:
		return "", nil
	}
}

// setFieldValue writes value into the field's value slot. Boolean values on
// button fields also set the appearance state so the checkbox renders
// checked or unchecked.
func setFieldValue(d types.Dict, value any) {
	if v, ok := value.(bool); ok {
		if ft := d.NameEntry("FT"); ft != nil && *ft == "Btn" {
			state := "Off"
			if v {
				state = "Yes"
			}
			d["V"] = types.Name(state)
			d["AS"] = types.Name(state)
			return
		}
	}

	d["V"] = textString(fmt.Sprintf("%v", value))
}

// textString encodes a Go string as a PDF text string. UTF-16BE with a BOM
// handles accented characters without literal-escaping concerns.
func textString(s string) types.Object {
	units := []uint16{0xFEFF}
	for _, r := range s {
		if r > 0xFFFF {
			r1, r2 := utf16SurrogatePair(r)
			units = append(units, r1, r2)
			continue
		}
		units = append(units, uint16(r))
	}

	var hex strings.Builder
	for _, u := range units {
		fmt.Fprintf(&hex, "%04X", u)
	}
	return types.HexLiteral(hex.String())
}

func utf16SurrogatePair(r rune) (uint16, uint16) {
	r -= 0x10000
	return uint16(0xD800 + (r >> 10)), uint16(0xDC00 + (r & 0x3FF))
}
