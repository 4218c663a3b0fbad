package pdffile

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/fieldscope/fieldscope/internal/detect"
	"github.com/fieldscope/fieldscope/internal/geometry"
)

// Widgets implements detect.AnnotationSource: the AcroForm fields whose
// widget annotation sits on the given page, with rectangles converted to
// top-down point space.
func (d *Document) Widgets(ctx context.Context, pageNum int) ([]detect.Widget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	geom, err := d.PageGeometry(pageNum)
	if err != nil {
		return nil, err
	}

	annotPages, err := d.annotPageIndex()
	if err != nil {
		return nil, err
	}

	fields, err := d.acroFormFields()
	if err != nil {
		return nil, err
	}

	var out []detect.Widget
	for _, f := range fields {
		page, ok := annotPages[f.objNr]
		if !ok {
			// Fields whose widget never appears in a page Annots array are
			// orphaned; attribute them to page 1 like most viewers do.
			page = 1
		}
		if page != pageNum {
			continue
		}
		rect, ok := f.rectTopDown(geom)
		if !ok {
			continue
		}
		out = append(out, detect.Widget{
			FieldName: f.name,
			Rect:      rect,
			Value:     f.value,
		})
	}
	return out, nil
}

// acroField is one terminal AcroForm field with its widget rectangle in
// native bottom-up PDF coordinates.
type acroField struct {
	objNr int
	name  string
	value string
	llx   float64
	lly   float64
	urx   float64
	ury   float64
	hasRt bool
}

func (f acroField) rectTopDown(geom detect.PageGeometry) (geometry.Rect, bool) {
	if !f.hasRt {
		return geometry.Rect{}, false
	}
	r := geometry.Rect{
		X: f.llx,
		Y: geom.Height - f.ury,
		W: f.urx - f.llx,
		H: f.ury - f.lly,
	}
	if !r.IsFinite() || r.W <= 0 || r.H <= 0 {
		return geometry.Rect{}, false
	}
	return r, true
}

// acroFormFields walks the document's AcroForm Fields array, descending
// into Kids so fields with separate widget annotations are found too.
func (d *Document) acroFormFields() ([]acroField, error) {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := d.ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	var out []acroField
	for _, ref := range fieldsArray {
		out = d.collectField(ref, "", out, 0)
	}
	return out, nil
}

// collectField processes one field object, recursing into Kids. Partial
// names are joined with dots per the AcroForm naming convention.
func (d *Document) collectField(obj types.Object, parentName string, acc []acroField, depth int) []acroField {
	if depth > 8 {
		return acc
	}
	objNr := 0
	if ir, ok := obj.(types.IndirectRef); ok {
		objNr = int(ir.ObjectNumber)
	}
	dict, err := d.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return acc
	}

	name := parentName
	if nameObj, found := dict.Find("T"); found {
		if partial, err := d.ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && partial != "" {
			if name != "" {
				name = name + "." + partial
			} else {
				name = partial
			}
		}
	}

	field := acroField{objNr: objNr, name: name}

	if valueObj, found := dict.Find("V"); found {
		if val, err := d.ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			field.value = val
		}
	}

	if rectObj, found := dict.Find("Rect"); found {
		if coords, ok := d.rectCoords(rectObj); ok {
			field.llx, field.lly, field.urx, field.ury = coords[0], coords[1], coords[2], coords[3]
			field.hasRt = true
		}
	}

	if kidsObj, found := dict.Find("Kids"); found {
		if kidsArray, err := d.ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			for _, kid := range kidsArray {
				acc = d.collectField(kid, name, acc, depth+1)
			}
			return acc
		}
	}

	if field.hasRt {
		acc = append(acc, field)
	}
	return acc
}

func (d *Document) rectCoords(rectObj types.Object) ([4]float64, bool) {
	var coords [4]float64
	rectArray, err := d.ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return coords, false
	}
	for i, coord := range rectArray {
		f, err := d.ctx.DereferenceNumber(coord)
		if err != nil {
			return coords, false
		}
		coords[i] = f
	}
	// Normalize inverted rectangles.
	if coords[0] > coords[2] {
		coords[0], coords[2] = coords[2], coords[0]
	}
	if coords[1] > coords[3] {
		coords[1], coords[3] = coords[3], coords[1]
	}
	return coords, true
}

// annotPageIndex maps annotation object numbers to page numbers by walking
// the page tree.
func (d *Document) annotPageIndex() (map[int]int, error) {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return nil, fmt.Errorf("catalog has no Pages entry")
	}

	index := make(map[int]int)
	pageNr := 0
	var walk func(obj types.Object, depth int)
	walk = func(obj types.Object, depth int) {
		if depth > 32 {
			return
		}
		dict, err := d.ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			return
		}
		if kidsObj, found := dict.Find("Kids"); found {
			if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
				for _, kid := range kids {
					walk(kid, depth+1)
				}
				return
			}
		}
		// Leaf page node.
		pageNr++
		annotsObj, found := dict.Find("Annots")
		if !found {
			return
		}
		annots, err := d.ctx.DereferenceArray(annotsObj)
		if err != nil {
			return
		}
		for _, a := range annots {
			if ir, ok := a.(types.IndirectRef); ok {
				index[int(ir.ObjectNumber)] = pageNr
			}
		}
	}
	walk(pagesObj, 0)
	return index, nil
}
