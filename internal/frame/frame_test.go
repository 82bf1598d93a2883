package frame

import (
	"bytes"
	"testing"
)

func TestNew_InvalidDimensions(t *testing.T) {
	for _, tc := range []struct{ w, h int }{{0, 10}, {10, 0}, {-1, 4}, {4, -1}} {
		if _, err := New(tc.w, tc.h); err == nil {
			t.Fatalf("New(%d,%d): expected error", tc.w, tc.h)
		}
	}
}

func TestBuffer_SizeInvariant(t *testing.T) {
	b := MustNew(7, 5)
	if got, want := b.Size(), 7*5*BytesPerPixel; got != want {
		t.Fatalf("Size = %d, want %d", got, want)
	}
	if len(b.Pix()) != b.Size() {
		t.Fatalf("Pix length %d != Size %d", len(b.Pix()), b.Size())
	}
}

func TestBuffer_SetPixelBounds(t *testing.T) {
	b := MustNew(4, 4)
	before := append([]byte(nil), b.Pix()...)
	// Out-of-range writes must be silently ignored.
	b.SetPixel(-1, 0, 255, 255, 255)
	b.SetPixel(0, -1, 255, 255, 255)
	b.SetPixel(4, 0, 255, 255, 255)
	b.SetPixel(0, 4, 255, 255, 255)
	if !bytes.Equal(before, b.Pix()) {
		t.Fatalf("out-of-range SetPixel mutated the buffer")
	}
	b.SetPixel(3, 3, 1, 2, 3)
	if r, g, bl := b.At(3, 3); r != 1 || g != 2 || bl != 3 {
		t.Fatalf("At(3,3) = %d,%d,%d, want 1,2,3", r, g, bl)
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := MustNew(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			b.SetPixel(x, y, 9, 9, 9)
		}
	}
	b.Clear()
	for _, v := range b.Pix() {
		if v != 0 {
			t.Fatalf("Clear left non-zero byte")
		}
	}
}

func TestBuffer_FlipVertical(t *testing.T) {
	b := MustNew(2, 3)
	// Encode the row number into the red channel.
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			b.SetPixel(x, y, uint8(y), 0, 0)
		}
	}
	b.FlipVertical()
	for y := 0; y < 3; y++ {
		r, _, _ := b.At(0, y)
		if int(r) != 2-y {
			t.Fatalf("row %d: red = %d, want %d", y, r, 2-y)
		}
	}
}

func TestBuffer_FlipVerticalTwiceIsIdentity(t *testing.T) {
	b := MustNew(5, 4)
	for i := range b.Pix() {
		b.Pix()[i] = byte(i * 31)
	}
	orig := append([]byte(nil), b.Pix()...)
	b.FlipVertical()
	b.FlipVertical()
	if !bytes.Equal(orig, b.Pix()) {
		t.Fatalf("double flip is not identity")
	}
}

func TestBuffer_CopyFrom(t *testing.T) {
	src := MustNew(2, 2)
	src.SetPixel(1, 1, 7, 8, 9)
	dst := MustNew(2, 2)
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if r, g, bl := dst.At(1, 1); r != 7 || g != 8 || bl != 9 {
		t.Fatalf("copied pixel mismatch")
	}
	other := MustNew(3, 2)
	if err := other.CopyFrom(src); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}
