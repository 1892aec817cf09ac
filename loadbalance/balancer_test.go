package loadbalance

import (
	"testing"

	"sensor-rpc/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: "/run/ctl-1.sock", Weight: 10, Version: "1.0"},
	{Addr: "/run/ctl-2.sock", Weight: 5, Version: "1.0"},
	{Addr: "/run/ctl-3.sock", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all instances in order
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		if inst.Addr != testInstances[i].Addr {
			t.Fatalf("pick %d: expect %s, got %s", i, testInstances[i].Addr, inst.Addr)
		}
	}

	// Pick again, should wrap around to first
	inst, _ := b.Pick(testInstances)
	if inst.Addr != testInstances[0].Addr {
		t.Fatalf("expect wrap around to %s, got %s", testInstances[0].Addr, inst.Addr)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Pick([]registry.ServiceInstance{}); err == nil {
		t.Fatal("expect error for empty instances")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so ctl-1 should be picked ~2x as often as ctl-2
	ratio := float64(counts["/run/ctl-1.sock"]) / float64(counts["/run/ctl-2.sock"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio ctl-1/ctl-2 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	insts := []registry.ServiceInstance{{Addr: "/run/a.sock"}, {Addr: "/run/b.sock"}}
	for i := 0; i < 100; i++ {
		if _, err := b.Pick(insts); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNew(t *testing.T) {
	if got := New("weighted_random").Name(); got != "WeightedRandom" {
		t.Fatalf("expect WeightedRandom, got %s", got)
	}
	if got := New("").Name(); got != "RoundRobin" {
		t.Fatalf("expect RoundRobin default, got %s", got)
	}
}
