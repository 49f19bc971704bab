package boot

import "testing"

func fixtureMap() []MemoryMapEntry {
	return []MemoryMapEntry{
		{Base: 0x0, Length: 0x1000, Kind: Reserved},
		{Base: 0x1000, Length: 0x1000000, Kind: Usable},
		{Base: 0x1001000, Length: 0x1000, Kind: AcpiReclaimable},
		{Base: 0x1002000, Length: 0x2000000, Kind: Usable},
	}
}

func TestVisitUsableEntries(t *testing.T) {
	var got []MemoryMapEntry
	VisitUsableEntries(fixtureMap(), func(entry *MemoryMapEntry) bool {
		got = append(got, *entry)
		return true
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 usable entries; got %d", len(got))
	}

	if got[0].Base != 0x1000 || got[1].Base != 0x1002000 {
		t.Fatalf("unexpected usable entries: %+v", got)
	}
}

func TestVisitEntriesEarlyExit(t *testing.T) {
	var visited int
	VisitEntries(fixtureMap(), func(entry *MemoryMapEntry) bool {
		visited++
		return entry.Kind != Usable
	})

	if visited != 2 {
		t.Fatalf("expected visitor to stop after the first usable entry (2 visits); got %d", visited)
	}
}

func TestUsableSpan(t *testing.T) {
	start, end, ok := UsableSpan(fixtureMap())
	if !ok {
		t.Fatal("expected ok=true for a map containing usable entries")
	}

	if start != 0x1000 {
		t.Errorf("expected span start 0x1000; got 0x%x", start)
	}

	if exp := uint64(0x1002000 + 0x2000000); end != exp {
		t.Errorf("expected span end 0x%x; got 0x%x", exp, end)
	}

	if _, _, ok := UsableSpan(nil); ok {
		t.Fatal("expected ok=false for an empty map")
	}
}

func TestIsSorted(t *testing.T) {
	if !IsSorted(fixtureMap()) {
		t.Fatal("expected fixtureMap to be sorted")
	}

	unsorted := []MemoryMapEntry{
		{Base: 0x2000},
		{Base: 0x1000},
	}
	if IsSorted(unsorted) {
		t.Fatal("expected unsorted map to be reported as unsorted")
	}
}
