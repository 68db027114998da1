package tiledoc

import (
	"errors"
	"testing"
)

func TestRowLayout(t *testing.T) {
	got := RowLayout(3, DefaultOriginX, DefaultOriginY, DefaultDocumentWidth, DefaultDocumentGap)
	want := []Placement{{30, 100}, {280, 100}, {530, 100}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("placement %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if RowLayout(0, 0, 0, 1, 1) != nil {
		t.Error("RowLayout(0) should be nil")
	}
}

func TestScene_Add(t *testing.T) {
	s := NewScene(testCatalog(t), &fakeSource{})
	defer s.Close()

	in, err := s.Add("left", sheet, 30, 100, 200)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	// 298x210 scaled to 200 wide keeps its aspect ratio.
	if in.WorldHeight != 210*200.0/298 {
		t.Errorf("WorldHeight = %g", in.WorldHeight)
	}
	if in.Controller.Lod() != 0 || in.Controller.Stats().Loaded != 1 {
		t.Errorf("controller lod %d stats %+v", in.Controller.Lod(), in.Controller.Stats())
	}

	if _, err := s.Add("left", kandinsky, 0, 0, 200); err == nil {
		t.Error("duplicate instance id accepted")
	}
	if _, err := s.Add("bad", kandinsky, 0, 0, 0); !errors.Is(err, ErrBadSize) {
		t.Errorf("zero world width: err = %v", err)
	}
	if _, err := s.Add("nope", "missing", 0, 0, 200); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("unknown document: err = %v", err)
	}
	if s.Bridge().Len() != 1 {
		t.Errorf("bridge has %d handlers, want 1", s.Bridge().Len())
	}
}

func TestScene_ZoomSettled(t *testing.T) {
	s := NewScene(testCatalog(t), &fakeSource{})
	defer s.Close()

	place := RowLayout(2, DefaultOriginX, DefaultOriginY, DefaultDocumentWidth, DefaultDocumentGap)
	if _, err := s.Add("sheet", sheet, place[0].X, place[0].Y, DefaultDocumentWidth); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("art", kandinsky, place[1].X, place[1].Y, DefaultDocumentWidth); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		scale     float64
		changed   int
		sheetLod  Lod
		kandinLod Lod
	}{
		{1, 1, 0, 1},   // 200 px: kandinsky moves to 204
		{1.2, 1, 0, 2}, // 240 px: kandinsky needs 408
		{1.4, 0, 0, 2}, // 280 px: no change
		{10, 2, 3, 5},  // 2000 px
		{10, 0, 3, 5},  // repeated
		{0.1, 2, 0, 0}, // 20 px
	}
	for _, tt := range tests {
		if got := s.ZoomSettled(tt.scale); got != tt.changed {
			t.Errorf("scale %g: changed = %d, want %d", tt.scale, got, tt.changed)
		}
		sh, _ := s.Instance("sheet")
		art, _ := s.Instance("art")
		if sh.Controller.Lod() != tt.sheetLod || art.Controller.Lod() != tt.kandinLod {
			t.Errorf("scale %g: lods = %d, %d, want %d, %d", tt.scale,
				sh.Controller.Lod(), art.Controller.Lod(), tt.sheetLod, tt.kandinLod)
		}
	}
}

func TestScene_RemoveAndClose(t *testing.T) {
	s := NewScene(testCatalog(t), &fakeSource{})
	a, _ := s.Add("a", sheet, 0, 0, 100)
	b, _ := s.Add("b", sheet, 200, 0, 100)

	if got := s.Instances(); len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("Instances() = %v", got)
	}

	if !s.Remove("a") || s.Remove("a") {
		t.Error("Remove should report true once")
	}
	if !a.Controller.Destroyed() {
		t.Error("removed instance controller not destroyed")
	}
	if s.ZoomSettled(100) != 1 {
		t.Error("remaining instance should change level")
	}

	s.Close()
	if !b.Controller.Destroyed() || len(s.Instances()) != 0 || s.Bridge().Len() != 0 {
		t.Error("Close left instances behind")
	}
}
