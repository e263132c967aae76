package hotkeys

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/projectmapper/internal/platform/platformtest"
)

func TestIgnoreMasks(t *testing.T) {
	tests := []struct {
		name string
		base []uint16
		want []uint16
	}{
		{"caps only", []uint16{2}, []uint16{0, 2}},
		{"caps and numlock", []uint16{2, 16}, []uint16{0, 2, 16, 18}},
		{"caps numlock scroll", []uint16{2, 16, 128}, []uint16{0, 2, 16, 18, 128, 130, 144, 146}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ignoreMasks(tt.base)
			sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ignoreMasks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewHandler_RequiresX11(t *testing.T) {
	if _, err := NewHandler(platformtest.New()); err == nil {
		t.Fatal("expected an error for a backend without X11 access")
	}
}
