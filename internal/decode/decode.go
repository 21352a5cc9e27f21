// Package decode implements the binary decoder (C3): a streaming, one-pass,
// pure parser from bytes to module.Module. It never allocates memories or
// tables and never panics — every failure is a typed wrterr.Error drawn
// from the closed taxonomy in spec section 4.3.
//
// Grounded on internal/wasm/binary (section order, round-trip shape) and
// internal/leb128 (canonical-encoding rejection observed in its tests).
// LEB128 itself is delegated to github.com/tetratelabs/wabin/leb128, the
// maintained fork of that same package, rather than reimplemented here.
package decode

import (
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wabin/leb128"

	"github.com/pulseengine/wrtcore/internal/module"
	"github.com/pulseengine/wrtcore/internal/wrterr"
)

var log = logrus.WithField("component", "decode")

const (
	magic0 = 0x00
	magic1 = 0x61 // 'a'
	magic2 = 0x73 // 's'
	magic3 = 0x6d // 'm'

	coreLayer      = 0
	componentLayer = 1
)

// section ids, core module flavor.
const (
	sectionCustom = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
	sectionDataCount
)

// errors, per the closed taxonomy of spec section 4.3. Every one is
// recoverable: the decoder itself never panics.
var (
	errTruncated      = wrterr.New(wrterr.KindParse, 100, "TruncatedInput")
	errInvalidMagic   = wrterr.New(wrterr.KindParse, 101, "InvalidMagic")
	errUnsupportedVer = wrterr.New(wrterr.KindParse, 102, "UnsupportedVersion")
	errOverlongLeb    = wrterr.New(wrterr.KindParse, 103, "OverlongLeb128")
	errInvalidUTF8    = wrterr.New(wrterr.KindParse, 104, "InvalidUtf8")
	errSectionOrder   = wrterr.New(wrterr.KindParse, 105, "SectionOutOfOrder")
	errIndexOOB       = wrterr.New(wrterr.KindParse, 106, "IndexOutOfBounds")
	errTypeMismatch   = wrterr.New(wrterr.KindParse, 107, "TypeMismatch")
)

// reader walks a byte slice with an explicit cursor, never panicking: every
// read either succeeds or returns an error (errTruncated for fixed-size
// reads, an OverlongLeb128 error for any failed LEB128 read).
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.data[r.pos:])
	if err != nil {
		return 0, wrterr.Wrap(wrterr.KindParse, 103, "OverlongLeb128", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.data[r.pos:])
	if err != nil {
		return 0, wrterr.Wrap(wrterr.KindParse, 103, "OverlongLeb128", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, n, err := leb128.LoadInt64(r.data[r.pos:])
	if err != nil {
		return 0, wrterr.Wrap(wrterr.KindParse, 103, "OverlongLeb128", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !validUTF8(b) {
		return "", errInvalidUTF8
	}
	return string(b), nil
}

// Decode parses data as either a core Wasm module or a Component Model
// binary, per the 12-byte header (magic, version, and — for components
// only — a layer field), and then streams through sections in one pass.
func Decode(data []byte) (*module.Module, error) {
	r := &reader{data: data}
	magic, err := r.bytes(4)
	if err != nil {
		return nil, errTruncated
	}
	if magic[0] != magic0 || magic[1] != magic1 || magic[2] != magic2 || magic[3] != magic3 {
		return nil, errInvalidMagic
	}
	verBytes, err := r.bytes(4)
	if err != nil {
		return nil, errTruncated
	}
	version := uint32(verBytes[0]) | uint32(verBytes[1])<<8 | uint32(verBytes[2])<<16 | uint32(verBytes[3])<<24

	m := &module.Module{ExportSection: map[string]*module.Export{}}
	switch version {
	case 1:
		m.Format = module.FormatCoreModule
	default:
		return nil, errUnsupportedVer
	}

	// A component binary additionally carries a 4-byte layer field
	// immediately after the version; layer 0 is core, layer 1 is component.
	// We detect this the same way regardless of the version value wazero's
	// own slice of the pack predates: peek ahead without consuming unless
	// it resolves to a genuine component layer marker.
	if r.remaining() >= 4 {
		layerBytes := r.data[r.pos : r.pos+4]
		layer := uint32(layerBytes[0]) | uint32(layerBytes[1])<<8 | uint32(layerBytes[2])<<16 | uint32(layerBytes[3])<<24
		if layer == componentLayer {
			m.Format = module.FormatComponent
			r.pos += 4
		}
	}

	if err := decodeSections(r, m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSections(r *reader, m *module.Module) error {
	lastID := -1
	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return err
		}
		size, err := r.u32()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return errTruncated
		}
		if id != sectionCustom {
			if int(id) <= lastID {
				return errSectionOrder
			}
			lastID = int(id)
		}
		sr := &reader{data: body}
		if err := decodeSection(int(id), sr, m); err != nil {
			return err
		}
	}
	return nil
}

func decodeSection(id int, r *reader, m *module.Module) error {
	switch id {
	case sectionCustom:
		return decodeCustomSection(r, m)
	case sectionType:
		return decodeTypeSection(r, m)
	case sectionImport:
		return decodeImportSection(r, m)
	case sectionFunction:
		return decodeFunctionSection(r, m)
	case sectionTable:
		return decodeTableSection(r, m)
	case sectionMemory:
		return decodeMemorySection(r, m)
	case sectionGlobal:
		return decodeGlobalSection(r, m)
	case sectionExport:
		return decodeExportSection(r, m)
	case sectionStart:
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.StartSection = &idx
		return nil
	case sectionElement:
		return decodeElementSection(r, m)
	case sectionCode:
		return decodeCodeSection(r, m)
	case sectionData:
		return decodeDataSection(r, m)
	case sectionDataCount:
		// informational only; the count itself is not retained since
		// CodeSection/DataSection lengths are authoritative once parsed.
		_, err := r.u32()
		return err
	default:
		log.WithField("section_id", id).Debug("skipping unknown section")
		return nil
	}
}

func decodeValueType(b byte) (module.ValueType, error) {
	switch module.ValueType(b) {
	case module.ValueTypeI32, module.ValueTypeI64, module.ValueTypeF32, module.ValueTypeF64,
		module.ValueTypeV128, module.ValueTypeFuncref, module.ValueTypeExternref:
		return module.ValueType(b), nil
	default:
		return 0, errTypeMismatch
	}
}

func decodeTypeSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	m.TypeSection = make([]*module.FunctionType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return errTypeMismatch
		}
		params, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		results, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		m.TypeSection = append(m.TypeSection, &module.FunctionType{Params: params, Results: results})
	}
	return nil
}

func decodeValueTypeVec(r *reader) ([]module.ValueType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]module.ValueType, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		vt, err := decodeValueType(b)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func decodeLimits(r *reader) (min uint32, max *uint32, shared bool, err error) {
	flags, err := r.byte()
	if err != nil {
		return 0, nil, false, err
	}
	min, err = r.u32()
	if err != nil {
		return 0, nil, false, err
	}
	shared = flags&0x2 != 0
	if flags&0x1 != 0 {
		m, err := r.u32()
		if err != nil {
			return 0, nil, false, err
		}
		max = &m
	}
	return min, max, shared, nil
}

func decodeImportSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		modName, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp := &module.Import{Module: modName, Name: name, Kind: module.ImportKind(kind)}
		switch module.ImportKind(kind) {
		case module.ImportKindFunc:
			idx, err := r.u32()
			if err != nil {
				return err
			}
			imp.DescFunc = idx
		case module.ImportKindTable:
			elemByte, err := r.byte()
			if err != nil {
				return err
			}
			elemType, err := decodeValueType(elemByte)
			if err != nil {
				return err
			}
			min, max, _, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.DescTable = &module.TableType{ElemType: elemType, Min: min, Max: max}
		case module.ImportKindMemory:
			min, max, shared, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.DescMem = &module.MemoryType{Min: min, Max: max, Shared: shared}
		case module.ImportKindGlobal:
			vtByte, err := r.byte()
			if err != nil {
				return err
			}
			vt, err := decodeValueType(vtByte)
			if err != nil {
				return err
			}
			mutByte, err := r.byte()
			if err != nil {
				return err
			}
			imp.DescGlobal = &module.GlobalType{ValType: vt, Mutable: mutByte == 1}
		default:
			return errTypeMismatch
		}
		m.ImportSection = append(m.ImportSection, imp)
	}
	return nil
}

func decodeFunctionSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		idx, err := r.u32()
		if err != nil {
			return err
		}
		if int(idx) >= len(m.TypeSection) {
			return errIndexOOB
		}
		m.FunctionSection = append(m.FunctionSection, idx)
	}
	return nil
}

func decodeTableSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		elemByte, err := r.byte()
		if err != nil {
			return err
		}
		elemType, err := decodeValueType(elemByte)
		if err != nil {
			return err
		}
		min, max, _, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.TableSection = append(m.TableSection, &module.TableType{ElemType: elemType, Min: min, Max: max})
	}
	return nil
}

func decodeMemorySection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		min, max, shared, err := decodeLimits(r)
		if err != nil {
			return err
		}
		if shared && max == nil {
			return wrterr.New(wrterr.KindValidation, 108, "shared memory must declare a maximum")
		}
		m.MemorySection = append(m.MemorySection, &module.MemoryType{Min: min, Max: max, Shared: shared})
	}
	return nil
}

func decodeConstExpr(r *reader) (*module.ConstantExpression, error) {
	op, err := r.byte()
	if err != nil {
		return nil, err
	}
	start := r.pos
	switch op {
	case 0x41: // i32.const
		if _, err := r.i32(); err != nil {
			return nil, err
		}
	case 0x42: // i64.const
		if _, err := r.i64(); err != nil {
			return nil, err
		}
	case 0x43: // f32.const
		if _, err := r.bytes(4); err != nil {
			return nil, err
		}
	case 0x44: // f64.const
		if _, err := r.bytes(8); err != nil {
			return nil, err
		}
	case 0x23: // global.get
		if _, err := r.u32(); err != nil {
			return nil, err
		}
	case 0xd0: // ref.null
		if _, err := r.byte(); err != nil {
			return nil, err
		}
	default:
		return nil, errTypeMismatch
	}
	data := append([]byte(nil), r.data[start:r.pos]...)
	end, err := r.byte()
	if err != nil {
		return nil, err
	}
	if end != 0x0b {
		return nil, errTypeMismatch
	}
	return &module.ConstantExpression{Opcode: op, Data: data}, nil
}

func decodeGlobalSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		vtByte, err := r.byte()
		if err != nil {
			return err
		}
		vt, err := decodeValueType(vtByte)
		if err != nil {
			return err
		}
		mutByte, err := r.byte()
		if err != nil {
			return err
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		m.GlobalSection = append(m.GlobalSection, &module.Global{
			Type: &module.GlobalType{ValType: vt, Mutable: mutByte == 1},
			Init: init,
		})
	}
	return nil
}

func decodeExportSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.ExportSection[name] = &module.Export{Name: name, Kind: module.ExportKind(kind), Index: idx}
	}
	return nil
}

func decodeElementSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := r.u32()
		if err != nil {
			return err
		}
		seg := &module.ElementSegment{}
		if flags&0x1 != 0 {
			seg.Passive = true
		} else {
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.OffsetExpression = off
		}
		n, err := r.u32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			idx, err := r.u32()
			if err != nil {
				return err
			}
			seg.Init = append(seg.Init, idx)
		}
		m.ElementSection = append(m.ElementSection, seg)
	}
	return nil
}

func decodeCodeSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		size, err := r.u32()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return errTruncated
		}
		cr := &reader{data: body}
		numLocalBlocks, err := cr.u32()
		if err != nil {
			return err
		}
		var locals []module.ValueType
		for j := uint32(0); j < numLocalBlocks; j++ {
			n, err := cr.u32()
			if err != nil {
				return err
			}
			vtByte, err := cr.byte()
			if err != nil {
				return err
			}
			vt, err := decodeValueType(vtByte)
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		m.CodeSection = append(m.CodeSection, &module.Code{
			LocalTypes: locals,
			Body:       body[cr.pos:],
		})
	}
	if len(m.CodeSection) != len(m.FunctionSection) {
		return wrterr.New(wrterr.KindValidation, 109, "code section length does not match function section")
	}
	return nil
}

func decodeDataSection(r *reader, m *module.Module) error {
	count, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flags, err := r.u32()
		if err != nil {
			return err
		}
		seg := module.DataSegment{}
		switch flags {
		case 0:
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.OffsetExpression = *off
		case 1:
			seg.Passive = true
		case 2:
			memIdx, err := r.u32()
			if err != nil {
				return err
			}
			seg.MemoryIndex = memIdx
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.OffsetExpression = *off
		default:
			return errTypeMismatch
		}
		n, err := r.u32()
		if err != nil {
			return err
		}
		init, err := r.bytes(int(n))
		if err != nil {
			return errTruncated
		}
		seg.Init = append([]byte(nil), init...)
		m.DataSection = append(m.DataSection, &seg)
	}
	return nil
}

// decodeCustomSection dispatches the "name" custom section into
// module.NameSection; any other custom section, or a malformed name
// section, is silently ignored per spec section 4.3 ("absent or malformed
// name sections are non-fatal").
func decodeCustomSection(r *reader, m *module.Module) error {
	name, err := r.name()
	if err != nil {
		log.Debug("malformed custom section name, ignoring")
		return nil
	}
	if name != "name" {
		return nil
	}
	ns, err := decodeNameSection(r)
	if err != nil {
		log.WithError(err).Debug("malformed name section, ignoring")
		return nil
	}
	m.NameSection = ns
	return nil
}

const (
	nameSubsectionModule = iota
	nameSubsectionFunction
	nameSubsectionLocal
)

func decodeNameSection(r *reader) (*module.NameSection, error) {
	ns := &module.NameSection{
		FunctionNames: map[module.Index]string{},
		LocalNames:    map[module.Index]map[module.Index]string{},
	}
	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return ns, nil
		}
		size, err := r.u32()
		if err != nil {
			return ns, nil
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return ns, nil
		}
		sr := &reader{data: body}
		switch id {
		case nameSubsectionModule:
			n, err := sr.name()
			if err == nil {
				ns.ModuleName = n
			}
		case nameSubsectionFunction:
			decodeNameMap(sr, ns.FunctionNames)
		case nameSubsectionLocal:
			count, err := sr.u32()
			if err != nil {
				continue
			}
			for i := uint32(0); i < count; i++ {
				fnIdx, err := sr.u32()
				if err != nil {
					break
				}
				m := map[module.Index]string{}
				decodeNameMap(sr, m)
				ns.LocalNames[fnIdx] = m
			}
		}
	}
	return ns, nil
}

func decodeNameMap(r *reader, out map[module.Index]string) {
	count, err := r.u32()
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		idx, err := r.u32()
		if err != nil {
			return
		}
		n, err := r.name()
		if err != nil {
			return
		}
		out[idx] = n
	}
}

func validUTF8(b []byte) bool {
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c < 0x80:
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return false
			}
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return false
			}
			i += 3
		case c&0xf8 == 0xf0:
			if i+3 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 || b[i+3]&0xc0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}
