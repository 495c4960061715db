package kvcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrisonrobin/timebox/pkg/model"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := Open(dir)

	in := map[string][]model.WeightEntry{"all": {{Date: "2024-01-02", Weight: 71.5}}}
	if err := c.Put(KeyWeightEntries, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh handle must see the value on disk.
	var out map[string][]model.WeightEntry
	if !Open(dir).Get(KeyWeightEntries, &out) {
		t.Fatal("Get returned false for stored key")
	}
	if len(out["all"]) != 1 || out["all"][0].Weight != 71.5 || out["all"][0].Date != "2024-01-02" {
		t.Errorf("unexpected value: %+v", out)
	}
}

func TestGetMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	c := Open(dir)

	var date string
	if c.Get(KeySelectedDate, &date) {
		t.Error("Get on missing key should be false")
	}

	if err := os.WriteFile(filepath.Join(dir, KeyZoomState), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	var zoom bool
	if Open(dir).Get(KeyZoomState, &zoom) {
		t.Error("malformed value should fall back to default")
	}
	if zoom {
		t.Error("zoom should stay at zero value")
	}
}

func TestDelete(t *testing.T) {
	c := Open(t.TempDir())
	if err := c.Delete(KeyHabits); err != nil {
		t.Errorf("Delete on missing key: %v", err)
	}
	if err := c.Put(KeyHabits, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(KeyHabits); err != nil {
		t.Fatal(err)
	}
	var v []string
	if c.Get(KeyHabits, &v) {
		t.Error("key still present after Delete")
	}
}
