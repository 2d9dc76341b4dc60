package credstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreCopiesRecords(t *testing.T) {
	seed := map[string]Record{"a": {AppToken: "one"}}
	s := NewStore(seed)
	seed["a"] = Record{AppToken: "mutated"}

	got, ok := s.Get("a")
	if !ok || got.AppToken != "one" {
		t.Errorf("store should not alias the seed map, got %+v", got)
	}

	snap := s.Snapshot()
	snap["a"] = Record{AppToken: "changed"}
	if got, _ := s.Get("a"); got.AppToken != "one" {
		t.Error("snapshot should be a copy")
	}
}

func TestStoreConcurrentDisjointKeys(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("acct-%d", n)
			if _, ok := s.Get(key); ok {
				t.Errorf("unexpected record for %s", key)
			}
			s.Put(key, Record{UserID: key})
		}(i)
	}
	wg.Wait()

	if s.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", s.Len())
	}
	for _, k := range s.Keys() {
		r, _ := s.Get(k)
		if r.UserID != k {
			t.Errorf("record %s has user id %s", k, r.UserID)
		}
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(map[string]Record{"a": {}})
	if !s.Delete("a") {
		t.Error("Delete() should report an existing key")
	}
	if s.Delete("a") {
		t.Error("Delete() should report a missing key")
	}
}

func TestGrantTimeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"quoted millis", `"1700000000000"`, 1700000000000},
		{"number", `1700000000000`, 1700000000000},
		{"empty string", `""`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g GrantTime
			if err := json.Unmarshal([]byte(tt.in), &g); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
			}
			if tt.want == 0 {
				if !g.IsZero() {
					t.Errorf("expected zero time, got %v", g.Time)
				}
				return
			}
			if g.UnixMilli() != tt.want {
				t.Errorf("UnixMilli() = %d, want %d", g.UnixMilli(), tt.want)
			}
		})
	}

	out, err := json.Marshal(GrantTime{time.UnixMilli(42)})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"42"` {
		t.Errorf("Marshal() = %s, want \"42\"", out)
	}
}

func TestGrantKeepsTierAndTimestampTogether(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var r Record
	r.GrantApp("app", at)
	if r.AppToken != "app" || !r.AppTokenTime.Equal(at) {
		t.Errorf("GrantApp did not update tier and timestamp: %+v", r)
	}
	if !r.LoginTokenTime.IsZero() || !r.AccessTokenTime.IsZero() {
		t.Error("GrantApp must not touch other tiers")
	}
	r.GrantLogin("login", "uid", at)
	if r.UserID != "uid" || r.LoginToken != "login" || !r.LoginTokenTime.Equal(at) {
		t.Errorf("GrantLogin did not update tier: %+v", r)
	}
}
