package protocol

import (
	"strconv"
	"testing"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

func benchPatches(n int) []Patch {
	patches := make([]Patch, 0, n)
	for i := 0; i < n; i++ {
		hid := "h" + strconv.Itoa(i+1)
		switch i % 3 {
		case 0:
			patches = append(patches, NewMoveNodePatch(hid, "h0", "h"+strconv.Itoa(i+2)))
		case 1:
			patches = append(patches, NewSetAttrPatch(hid, "class", "row selected"))
		default:
			patches = append(patches, NewCreateNodePatch(hid, NewElementWire("li", strconv.Itoa(i), nil)))
		}
	}
	return patches
}

func BenchmarkEncodePatches(b *testing.B) {
	pf := &PatchesFrame{Seq: 1, Patches: benchPatches(100)}
	e := NewEncoderWithCap(4096)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Reset()
		EncodePatchesTo(e, pf)
	}
}

func BenchmarkDecodePatches(b *testing.B) {
	data := EncodePatches(&PatchesFrame{Seq: 1, Patches: benchPatches(100)})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodePatches(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkChunkPatches(b *testing.B) {
	patches := benchPatches(10_000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ChunkPatches(patches, MaxPayloadSize); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeRender(b *testing.B) {
	rows := make([]*vdom.VNode, 1000)
	for i := range rows {
		rows[i] = vdom.Tr(vdom.Key(strconv.Itoa(i)), vdom.Td(vdom.Textf("row %d", i)))
	}
	r := &Render{Tree: VNodeToWire(vdom.Table(vdom.Tbody(rows)))}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeRender(r)
	}
}
