package query

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewSubquery_Valid(t *testing.T) {
	sq, err := NewSubquery(" ubicación del equipo DLS-168 ", "location", map[string]string{"equipo": "DLS-168"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sq.Text() != "ubicación del equipo DLS-168" {
		t.Errorf("Text() = %q", sq.Text())
	}
	if sq.Intent() != "location" {
		t.Errorf("Intent() = %q", sq.Intent())
	}
	if sq.Filters()["equipo"] != "DLS-168" {
		t.Errorf("Filters() = %v", sq.Filters())
	}
}

func TestNewSubquery_Empty(t *testing.T) {
	_, err := NewSubquery("  ", "x", nil)
	if !errors.Is(err, ErrEmptySubquery) {
		t.Errorf("expected ErrEmptySubquery, got %v", err)
	}
}

func TestNewSubquery_Truncates(t *testing.T) {
	sq, err := NewSubquery(strings.Repeat("á", 900), strings.Repeat("i", 300), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utf8.RuneCountInString(sq.Text()) != MaxSubqueryLength {
		t.Errorf("text len = %d", utf8.RuneCountInString(sq.Text()))
	}
	if len(sq.Intent()) != MaxIntentLength {
		t.Errorf("intent len = %d", len(sq.Intent()))
	}
}

func TestNewSubquery_DefaultFilters(t *testing.T) {
	sq, _ := NewSubquery("q", "", nil)
	if sq.Filters() == nil {
		t.Fatal("filters must default to an empty map")
	}
	if len(sq.Filters()) != 0 {
		t.Errorf("Filters() = %v", sq.Filters())
	}
}

func TestOriginal(t *testing.T) {
	sq := Original("equipment DLS-168 location")
	if sq.Text() != "equipment DLS-168 location" {
		t.Errorf("Text() = %q", sq.Text())
	}
	if sq.Intent() != OriginalIntent {
		t.Errorf("Intent() = %q", sq.Intent())
	}
	if sq.Filters() == nil || len(sq.Filters()) != 0 {
		t.Errorf("Filters() = %v", sq.Filters())
	}
}
