package lfs

import (
	"fmt"
	"testing"
)

func TestPermissionCache_addGet_roundTrip(t *testing.T) {
	pc := NewPermissionCache()

	pc.Add("/a/b", PermRead|PermWrite)

	perms, found := pc.Get("/a/b")
	if found != true {
		t.Fatalf("expected a cached entry for /a/b")
	}

	if perms != PermRead|PermWrite {
		t.Fatalf("unexpected cached permissions: (%#x)", perms)
	}

	_, found = pc.Get("/not/cached")
	if found == true {
		t.Fatalf("expected no cached entry for an unseen path")
	}
}

func TestPermissionCache_add_refreshesExistingPath(t *testing.T) {
	pc := NewPermissionCache()

	pc.Add("/a", PermRead)
	pc.Add("/a", PermRead|PermWrite)

	perms, found := pc.Get("/a")
	if found != true {
		t.Fatalf("expected a cached entry for /a")
	}

	if perms != PermRead|PermWrite {
		t.Fatalf("expected the refreshed value to win, got (%#x)", perms)
	}

	if len(pc.entries) != 1 {
		t.Fatalf("expected re-adding the same path to update in place, got (%d) entries", len(pc.entries))
	}
}

func TestPermissionCache_add_evictsOldestBeyondMaxEntries(t *testing.T) {
	pc := NewPermissionCache()

	for i := 0; i < permissionCacheMaxEntries+1; i++ {
		pc.Add(fmt.Sprintf("/path/%d", i), PermRead)
	}

	if len(pc.entries) != permissionCacheMaxEntries {
		t.Fatalf("expected the cache to stay at (%d) entries, got (%d)", permissionCacheMaxEntries, len(pc.entries))
	}

	_, found := pc.Get("/path/0")
	if found == true {
		t.Fatalf("expected the oldest entry to have been evicted")
	}

	_, found = pc.Get(fmt.Sprintf("/path/%d", permissionCacheMaxEntries))
	if found != true {
		t.Fatalf("expected the newest entry to still be cached")
	}
}

func TestPermissionCache_invalidateAll(t *testing.T) {
	pc := NewPermissionCache()

	pc.Add("/a", PermRead)
	pc.Add("/b", PermWrite)

	pc.InvalidateAll()

	if _, found := pc.Get("/a"); found == true {
		t.Fatalf("expected /a to be gone after InvalidateAll")
	}

	if _, found := pc.Get("/b"); found == true {
		t.Fatalf("expected /b to be gone after InvalidateAll")
	}
}

func TestApplyPermissionOption_togglesIndividualBits(t *testing.T) {
	perms := PermDefault

	perms = ApplyPermissionOption("+x", perms)
	if HasExec(perms) != true {
		t.Fatalf("expected +x to set the exec bit")
	}

	perms = ApplyPermissionOption("-w", perms)
	if HasWrite(perms) == true {
		t.Fatalf("expected -w to clear the write bit")
	}

	perms = ApplyPermissionOption("+h", perms)
	if IsHidden(perms) != true {
		t.Fatalf("expected +h to set the hidden bit")
	}
}

func TestIsValidPermissionOption(t *testing.T) {
	valid := []string{"+r", "-r", "+w", "-w", "+x", "-x", "+h", "-h", "+s", "-s"}
	for _, option := range valid {
		if IsValidPermissionOption(option) != true {
			t.Fatalf("expected (%s) to be a valid permission option", option)
		}
	}

	invalid := []string{"", "r", "+z", "rwx"}
	for _, option := range invalid {
		if IsValidPermissionOption(option) == true {
			t.Fatalf("expected (%s) to be rejected as a permission option", option)
		}
	}
}

func TestPermissionString_rendersTriplet(t *testing.T) {
	if s := PermissionString(PermRead | PermWrite | PermExec); s != "rwx" {
		t.Fatalf("expected rwx, got (%s)", s)
	}

	if s := PermissionString(0); s != "---" {
		t.Fatalf("expected ---, got (%s)", s)
	}

	if s := PermissionString(PermRead); s != "r--" {
		t.Fatalf("expected r--, got (%s)", s)
	}
}
