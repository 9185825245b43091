package event

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-01", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2024-01-01T18:30", want: time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)},
		{in: "2024-01-01T18:30:00+02:00", want: time.Date(2024, 1, 1, 16, 30, 0, 0, time.UTC)},
		{in: " 2024-06-15 09:00 ", want: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)},
		{in: "", wantErr: true},
		{in: "next friday", wantErr: true},
		{in: "2024-13-01", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDate(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDate(%q) unexpected error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPatchApply(t *testing.T) {
	e := NewFromCreate(NewEvent{Title: "Launch", Description: "d", Date: time.Now()})
	before := e.UpdatedAt

	title := "Relaunch"
	img := "https://img.example/a.png"
	Patch{Title: &title, ImageURL: &img}.Apply(&e)

	if e.Title != "Relaunch" || e.Description != "d" {
		t.Fatalf("unexpected fields after patch: %+v", e)
	}
	if e.ImageURL == nil || *e.ImageURL != img {
		t.Fatalf("image url not applied")
	}
	if e.UpdatedAt.Before(before) {
		t.Fatalf("updatedAt went backwards")
	}
	if (Patch{}).IsEmpty() != true {
		t.Fatalf("zero patch should be empty")
	}
}
