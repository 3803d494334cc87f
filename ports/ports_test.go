package ports

import (
	"reflect"
	"sort"
	"testing"
)

func sortedKeys(c *Collection) []uint32 {
	keys := c.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func TestCollectionBaselineDelta(t *testing.T) {
	baseline := New()
	baseline.Update(Port{PortNo: 1, Name: "p1"})
	baseline.Update(Port{PortNo: 2, Name: "p2"})

	c := NewFromBaseline(baseline)

	if got := sortedKeys(c); !reflect.DeepEqual(got, []uint32{1, 2}) {
		t.Fatalf("Keys: got %v, want [1 2]", got)
	}

	c.Forget(1)
	if got := sortedKeys(c); !reflect.DeepEqual(got, []uint32{2}) {
		t.Fatalf("Keys after Forget(1): got %v, want [2]", got)
	}
	if _, ok := c.ByNumber(1); ok {
		t.Fatal("ByNumber(1): found a masked baseline port")
	}
	if _, ok := baseline.ByNumber(1); !ok {
		t.Fatal("Forget on delta mutated the baseline")
	}

	c.Update(Port{PortNo: 3, Name: "p3"})
	if got := sortedKeys(c); !reflect.DeepEqual(got, []uint32{2, 3}) {
		t.Fatalf("Keys after Update(3): got %v, want [2 3]", got)
	}
}

func TestCollectionLocalWinsOverBaseline(t *testing.T) {
	baseline := New()
	baseline.Update(Port{PortNo: 1, Name: "old"})

	c := NewFromBaseline(baseline)
	c.Update(Port{PortNo: 1, Name: "new"})

	p, ok := c.ByNumber(1)
	if !ok || p.Name != "new" {
		t.Fatalf("ByNumber(1): got %+v, ok=%v, want Name=new", p, ok)
	}
}

func TestCollectionLookupByNameAndMAC(t *testing.T) {
	c := New()
	mac := [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	c.Update(Port{PortNo: 1, Name: "p1", HWAddr: mac})

	byNo, _ := c.ByNumber(1)
	byName, ok := c.ByName("p1")
	if !ok || byName != byNo {
		t.Fatalf("ByName disagreed with ByNumber: %+v vs %+v", byName, byNo)
	}

	byMAC, ok := c.ByHWAddr(mac)
	if !ok || byMAC != byNo {
		t.Fatalf("ByHWAddr disagreed with ByNumber: %+v vs %+v", byMAC, byNo)
	}
}

func TestCollectionReset(t *testing.T) {
	baseline := New()
	baseline.Update(Port{PortNo: 1, Name: "p1"})

	c := NewFromBaseline(baseline)
	c.Update(Port{PortNo: 2, Name: "p2"})
	c.Forget(1)

	c.Reset()

	if got := sortedKeys(c); !reflect.DeepEqual(got, []uint32{1}) {
		t.Fatalf("Keys after Reset: got %v, want [1]", got)
	}
}

func TestCollectionCopyIsIndependent(t *testing.T) {
	baseline := New()
	baseline.Update(Port{PortNo: 1, Name: "p1"})

	c := NewFromBaseline(baseline)
	c.Update(Port{PortNo: 2, Name: "p2"})

	dup := c.Copy()
	if dup == nil {
		t.Fatal("Copy returned nil")
	}

	c.Update(Port{PortNo: 3, Name: "p3"})
	baseline.Forget(1)

	if _, ok := dup.ByNumber(3); ok {
		t.Fatal("Copy observed a mutation made to the original after Copy")
	}
	if _, ok := dup.ByNumber(1); !ok {
		t.Fatal("Copy observed a baseline mutation made after Copy")
	}
}
