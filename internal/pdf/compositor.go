package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-editor/internal/annotation"
	"pdf-editor/internal/fonts"
	"pdf-editor/internal/imaging"
	"pdf-editor/internal/logger"
)

// Compositor merges rendered overlays into the pages of one output document.
// It caches font objects so each face is written once per document.
type Compositor struct {
	ctx      *model.Context
	renderer *Renderer
	log      logger.Logger
	fontRefs map[fonts.Face]types.IndirectRef
}

func NewCompositor(ctx *model.Context, renderer *Renderer, log logger.Logger) *Compositor {
	if log == nil {
		log = logger.Nop()
	}
	return &Compositor{
		ctx:      ctx,
		renderer: renderer,
		log:      log,
		fontRefs: make(map[fonts.Face]types.IndirectRef),
	}
}

// ComposePage draws anns onto the zero-based page pageIndex. A page whose
// list is empty, or whose overlay ends up with no marks, is left untouched.
// If merging fails the page is restored to its original state.
func (c *Compositor) ComposePage(ctx context.Context, pageIndex int, anns []annotation.Annotation) (PageOutcome, []AnnotationOutcome) {
	po := PageOutcome{Page: pageIndex, Annotations: len(anns)}
	if len(anns) == 0 {
		return po, nil
	}
	log := c.log.With(logger.Int("page", pageIndex))

	pageDict, _, inh, err := c.ctx.PageDict(pageIndex+1, false)
	if err == nil && (pageDict == nil || inh == nil) {
		err = errors.New("page dictionary not found")
	}
	var media *types.Rectangle
	if err == nil {
		media, err = c.mediaBox(pageDict, inh)
	}
	if err != nil {
		po.MergeErr = err
		log.Warn("page skipped", logger.Err(err))
		return po, skipAll(anns, ReasonPageFailed, err)
	}

	rot, rotErr := normalizeRotation(inh.Rotate)
	po.Rotation = inh.Rotate
	if rotErr != nil {
		po.RotationErr = rotErr
		log.Warn("rotation not normalized", logger.Int("rotate", inh.Rotate), logger.Err(rotErr))
	}

	resources, err := c.pageResources(pageDict, inh)
	if err != nil {
		po.MergeErr = fmt.Errorf("read page resources: %w", err)
		log.Warn("page skipped, resources unreadable", logger.Err(err))
		return po, skipAll(anns, ReasonPageFailed, po.MergeErr)
	}

	w, h := visualSize(rot, media)
	ov, outcomes := c.renderer.Render(ctx, w, h, uniquePrefix(c.ctx, resources), anns)
	po.Drawn = ov.Drawn
	if ov.Empty() {
		return po, outcomes
	}

	snap := snapshotPage(pageDict)

	m, target := identity, media
	if rot != 0 {
		m = rotationMatrix(rot, media)
		target = c.normalize(pageDict, inh, m, media, snap, &po)
		po.RotationNormalized = true
	}

	c.copyBoxes(ov, pageDict, inh, target, &po)
	for name, err := range po.BoxErrors {
		log.Warn("page box not copied", logger.String("box", name), logger.Err(err))
	}

	if err := c.merge(pageDict, pageIndex+1, resources, ov, m, target); err != nil {
		snap.restore(pageDict)
		po.MergeErr = err
		po.Merged = false
		po.RotationNormalized = false
		po.Drawn = 0
		log.Warn("overlay merge failed, keeping original page", logger.Err(err))
		for i := range outcomes {
			if outcomes[i].Status == StatusDrawn {
				outcomes[i].Status = StatusSkipped
				outcomes[i].Reason = ReasonPageFailed
				outcomes[i].Err = err
			}
		}
		return po, outcomes
	}

	po.Merged = true
	log.Debug("overlay merged", logger.Int("drawn", ov.Drawn), logger.Int("rotation", rot))
	return po, outcomes
}

func skipAll(anns []annotation.Annotation, reason string, err error) []AnnotationOutcome {
	out := make([]AnnotationOutcome, 0, len(anns))
	for _, a := range anns {
		out = append(out, AnnotationOutcome{
			Index:   a.Index,
			Page:    a.PageIndex,
			Variant: variant(a),
			Status:  StatusSkipped,
			Reason:  reason,
			Err:     err,
		})
	}
	return out
}

func (c *Compositor) mediaBox(pageDict types.Dict, inh *model.InheritedPageAttrs) (*types.Rectangle, error) {
	if r, present, err := c.box(pageDict, "MediaBox"); present {
		return r, err
	}
	if inh.MediaBox != nil && inh.MediaBox.Width() > 0 && inh.MediaBox.Height() > 0 {
		return inh.MediaBox, nil
	}
	return nil, errors.New("page has no usable MediaBox")
}

// box reads a rectangle entry from the page dictionary.
func (c *Compositor) box(pageDict types.Dict, name string) (*types.Rectangle, bool, error) {
	o, found := pageDict.Find(name)
	if !found {
		return nil, false, nil
	}
	o, err := c.ctx.Dereference(o)
	if err != nil {
		return nil, true, err
	}
	arr, ok := o.(types.Array)
	if !ok {
		return nil, true, fmt.Errorf("%s is not an array", name)
	}
	r, err := rectFromArray(arr)
	return r, true, err
}

// inheritedBox also consults inherited attributes for CropBox.
func (c *Compositor) inheritedBox(pageDict types.Dict, inh *model.InheritedPageAttrs, name string) (*types.Rectangle, bool, error) {
	r, present, err := c.box(pageDict, name)
	if present || name != "CropBox" || inh.CropBox == nil {
		return r, present, err
	}
	return inh.CropBox, true, nil
}

// normalize rewrites the page geometry through m: boxes are mapped, /Rotate
// is set to 0 and annotation rectangles follow the content. It returns the
// new media box. A box that cannot be mapped is dropped.
func (c *Compositor) normalize(pageDict types.Dict, inh *model.InheritedPageAttrs, m matrix, media *types.Rectangle, snap *pageSnapshot, po *PageOutcome) *types.Rectangle {
	target := m.applyRect(media)
	pageDict["MediaBox"] = target.Array()

	for _, name := range pageBoxes[1:] {
		r, present, err := c.inheritedBox(pageDict, inh, name)
		if !present {
			continue
		}
		if err != nil {
			pageDict.Delete(name)
			po.addBoxError(name, fmt.Errorf("rotate: %w", err))
			continue
		}
		pageDict[name] = m.applyRect(r).Array()
	}
	pageDict["Rotate"] = types.Integer(0)

	c.transformAnnots(pageDict, m, snap)
	return target
}

func (c *Compositor) transformAnnots(pageDict types.Dict, m matrix, snap *pageSnapshot) {
	o, found := pageDict.Find("Annots")
	if !found {
		return
	}
	o, err := c.ctx.Dereference(o)
	if err != nil {
		return
	}
	arr, ok := o.(types.Array)
	if !ok {
		return
	}
	for _, item := range arr {
		d, err := c.dict(item)
		if err != nil || d == nil {
			continue
		}
		ro, found := d.Find("Rect")
		if !found {
			continue
		}
		ra, err := c.ctx.Dereference(ro)
		if err != nil {
			continue
		}
		rarr, ok := ra.(types.Array)
		if !ok {
			continue
		}
		r, err := rectFromArray(rarr)
		if err != nil {
			continue
		}
		snap.rects = append(snap.rects, annotRect{dict: d, rect: ro})
		d["Rect"] = m.applyRect(r).Array()
	}
}

// copyBoxes copies the page boxes onto the overlay. Each box is copied
// independently.
func (c *Compositor) copyBoxes(ov *Overlay, pageDict types.Dict, inh *model.InheritedPageAttrs, media *types.Rectangle, po *PageOutcome) {
	for _, name := range pageBoxes {
		var (
			r       *types.Rectangle
			present = true
			err     error
		)
		if name == "MediaBox" {
			r = media
		} else {
			r, present, err = c.inheritedBox(pageDict, inh, name)
		}
		if !present {
			continue
		}
		if err == nil {
			err = ov.SetBox(name, r)
		}
		if err != nil {
			po.addBoxError(name, err)
			continue
		}
		po.BoxesCopied = append(po.BoxesCopied, name)
	}
}

func (po *PageOutcome) addBoxError(name string, err error) {
	if po.BoxErrors == nil {
		po.BoxErrors = make(map[string]error)
	}
	if _, seen := po.BoxErrors[name]; !seen {
		po.BoxErrors[name] = err
	}
}

// merge replaces the page content with the original content, wrapped in its
// own graphics state and the rotation transform, followed by the overlay.
func (c *Compositor) merge(pageDict types.Dict, pageNr int, resources types.Dict, ov *Overlay, m matrix, target *types.Rectangle) error {
	var original []byte
	if _, found := pageDict.Find("Contents"); found {
		var err error
		original, err = c.ctx.PageContent(pageDict, pageNr)
		if errors.Is(err, model.ErrNoContent) {
			// empty content stream
			original, err = nil, nil
		}
		if err != nil {
			return fmt.Errorf("read page content: %w", err)
		}
	}

	merged, err := c.mergeResources(resources, ov)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	if !m.isIdentity() {
		var cw contentWriter
		cw.matrixOp(m)
		buf.Write(cw.Bytes())
	}
	buf.Write(original)
	buf.WriteString("\nQ\n")

	var cw contentWriter
	cw.op("q")
	clipBox := ov.MediaBox
	if clipBox == nil {
		clipBox = target
	}
	cw.clip(clipBox.LL.X, clipBox.LL.Y, clipBox.Width(), clipBox.Height())
	if target.LL.X != 0 || target.LL.Y != 0 {
		cw.matrixOp(matrix{1, 0, 0, 1, target.LL.X, target.LL.Y})
	}
	buf.Write(cw.Bytes())
	buf.Write(ov.Content)
	buf.WriteString("Q\n")

	sd, err := c.ctx.NewStreamDictForBuf(buf.Bytes())
	if err != nil {
		return fmt.Errorf("create content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("encode content stream: %w", err)
	}
	ref, err := c.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return fmt.Errorf("allocate content stream: %w", err)
	}

	pageDict["Contents"] = *ref
	pageDict["Resources"] = merged
	return nil
}

// pageResources returns the page's own or inherited resource dictionary.
func (c *Compositor) pageResources(pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	if o, found := pageDict.Find("Resources"); found {
		return c.dict(o)
	}
	return inh.Resources, nil
}

// mergeResources returns a private copy of resources with the overlay's
// fonts and images added. Shared resource objects are not modified.
func (c *Compositor) mergeResources(resources types.Dict, ov *Overlay) (types.Dict, error) {
	res := copyDict(resources)

	if len(ov.Fonts) > 0 {
		fontDict, err := c.subDict(res, "Font")
		if err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(ov.Fonts) {
			ref, err := c.fontRef(ov.Fonts[name])
			if err != nil {
				return nil, fmt.Errorf("font %s: %w", name, err)
			}
			fontDict[name] = ref
		}
		res["Font"] = fontDict
	}

	if len(ov.Images) > 0 {
		xobjects, err := c.subDict(res, "XObject")
		if err != nil {
			return nil, err
		}
		for _, name := range sortedKeys(ov.Images) {
			ref, err := c.imageRef(ov.Images[name])
			if err != nil {
				return nil, fmt.Errorf("image %s: %w", name, err)
			}
			xobjects[name] = ref
		}
		res["XObject"] = xobjects
	}
	return res, nil
}

func (c *Compositor) subDict(res types.Dict, key string) (types.Dict, error) {
	o, found := res.Find(key)
	if !found {
		return types.Dict{}, nil
	}
	d, err := c.dict(o)
	if err != nil {
		return nil, fmt.Errorf("resources %s: %w", key, err)
	}
	return copyDict(d), nil
}

func (c *Compositor) fontRef(f fonts.Face) (types.IndirectRef, error) {
	if ref, ok := c.fontRefs[f]; ok {
		return ref, nil
	}
	obj, err := f.Object(c.ctx)
	if err != nil {
		return types.IndirectRef{}, err
	}
	ref, err := c.ctx.IndRefForNewObject(obj)
	if err != nil {
		return types.IndirectRef{}, err
	}
	c.fontRefs[f] = *ref
	return *ref, nil
}

func (c *Compositor) imageRef(r *imaging.Raster) (types.IndirectRef, error) {
	sd, err := c.ctx.NewStreamDictForBuf(r.Pix)
	if err != nil {
		return types.IndirectRef{}, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Image")
	sd.Dict["Width"] = types.Integer(r.Width)
	sd.Dict["Height"] = types.Integer(r.Height)
	sd.Dict["ColorSpace"] = types.Name("DeviceRGB")
	sd.Dict["BitsPerComponent"] = types.Integer(8)
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, err
	}
	ref, err := c.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ref, nil
}

// dict dereferences o and asserts a dictionary. A null object yields nil.
func (c *Compositor) dict(o types.Object) (types.Dict, error) {
	return derefDict(c.ctx, o)
}

func derefDict(ctx *model.Context, o types.Object) (types.Dict, error) {
	o, err := ctx.Dereference(o)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}
	d, ok := o.(types.Dict)
	if !ok {
		return nil, fmt.Errorf("expected dictionary, got %T", o)
	}
	return d, nil
}

func copyDict(d types.Dict) types.Dict {
	out := make(types.Dict, len(d)+2)
	for k, v := range d {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uniquePrefix picks a resource name prefix no existing Font or XObject
// name starts with.
func uniquePrefix(ctx *model.Context, resources types.Dict) string {
	var existing []string
	for _, key := range []string{"Font", "XObject"} {
		o, found := resources.Find(key)
		if !found {
			continue
		}
		d, err := derefDict(ctx, o)
		if err != nil {
			continue
		}
		for name := range d {
			existing = append(existing, name)
		}
	}

	for i := 1; ; i++ {
		prefix := "Ov" + strconv.Itoa(i)
		clash := false
		for _, name := range existing {
			if strings.HasPrefix(name, prefix) {
				clash = true
				break
			}
		}
		if !clash {
			return prefix
		}
	}
}

// pageSnapshot holds the page entries the compositor may replace.
type pageSnapshot struct {
	entries map[string]types.Object
	present map[string]bool
	rects   []annotRect
}

type annotRect struct {
	dict types.Dict
	rect types.Object
}

func snapshotPage(d types.Dict) *pageSnapshot {
	s := &pageSnapshot{
		entries: make(map[string]types.Object),
		present: make(map[string]bool),
	}
	keys := append([]string{"Contents", "Resources", "Rotate"}, pageBoxes...)
	for _, k := range keys {
		v, found := d.Find(k)
		s.entries[k] = v
		s.present[k] = found
	}
	return s
}

func (s *pageSnapshot) restore(d types.Dict) {
	for k, v := range s.entries {
		if s.present[k] {
			d[k] = v
		} else {
			d.Delete(k)
		}
	}
	for _, ar := range s.rects {
		ar.dict["Rect"] = ar.rect
	}
}
