package health

import "testing"

func TestHysteresisRequiresConsecutiveThreshold(t *testing.T) {
	rec := newRecord()

	if rec.Status() != Healthy {
		t.Fatal("expected initial status Healthy")
	}

	// Two failures below threshold 3 must not flip status.
	rec.OnFail(3)
	rec.OnFail(3)
	if rec.Status() != Healthy {
		t.Fatal("expected status to remain Healthy below threshold")
	}

	if !rec.OnFail(3) {
		t.Fatal("expected third consecutive failure to transition")
	}
	if rec.Status() != Unhealthy {
		t.Fatal("expected status Unhealthy after 3 consecutive failures")
	}

	// The failure counter is only cleared by an actual Unhealthy->Healthy
	// transition, not by isolated Ok events below healthy_threshold — so
	// failures accumulate across an interrupted-but-incomplete recovery.
	rec2 := newRecord()
	rec2.OnFail(3)
	rec2.OnFail(3)
	rec2.OnOk(2) // one success, short of healthy_threshold=2's own transition anyway (still Healthy)
	if !rec2.OnFail(3) {
		t.Fatal("expected the failure counter to keep accumulating across an isolated intervening success")
	}
	if rec2.Status() != Unhealthy {
		t.Fatal("expected transition to Unhealthy once the failure counter reaches the threshold")
	}

	rec.OnOk(2)
	if rec.Status() != Unhealthy {
		t.Fatal("one success below healthy_threshold should not recover")
	}
	if !rec.OnOk(2) {
		t.Fatal("expected second consecutive success to recover")
	}
	if rec.Status() != Healthy {
		t.Fatal("expected status Healthy after 2 consecutive successes")
	}
}

func TestRegistryCarriesOverRecordsAcrossReload(t *testing.T) {
	reg1 := NewRegistry([]string{"http://a", "http://b"}, nil)
	recA := reg1.Record("http://a")
	recA.OnFail(100) // leave some state, but not enough to flip

	reg2 := NewRegistry([]string{"http://a", "http://c"}, reg1)

	if reg2.Record("http://a") != recA {
		t.Fatal("expected record for http://a to be carried over by identity")
	}
	if reg2.Record("http://b") != nil {
		t.Fatal("expected http://b to be dropped")
	}
	if reg2.Record("http://c") == nil {
		t.Fatal("expected http://c to start fresh")
	}
	if reg2.Record("http://c").Status() != Healthy {
		t.Fatal("new backend should start Healthy")
	}
}

func TestFilterHealthyRespectsDisabledHealthCheck(t *testing.T) {
	reg := NewRegistry([]string{"http://a", "http://b"}, nil)
	reg.Record("http://a").OnFail(1) // flips to unhealthy with threshold 1

	healthy := reg.FilterHealthy([]string{"http://a", "http://b"}, false)
	if len(healthy) != 1 || healthy[0] != "http://b" {
		t.Fatalf("expected only http://b healthy, got %v", healthy)
	}

	all := reg.FilterHealthy([]string{"http://a", "http://b"}, true)
	if len(all) != 2 {
		t.Fatalf("expected both backends when health check disabled, got %v", all)
	}
}
