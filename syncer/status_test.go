package syncer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCheckSyncStatus(t *testing.T) {
	instance := t.TempDir()
	overrides := t.TempDir()

	mods := []DesiredMod{
		desiredMod("present", "present.jar", 1, 10, false),
		desiredMod("missing", "missing.jar", 2, 20, false),
		desiredMod("wrong-state", "wrong.jar", 3, 30, true),
		desiredMod("stale", "stale-v2.jar", 4, 40, false),
	}
	mustWrite(t, filepath.Join(instance, "mods", "present.jar"), "x")
	mustWrite(t, filepath.Join(instance, "mods", "wrong.jar"), "x")       // should be disabled
	mustWrite(t, filepath.Join(instance, "mods", "stale-v1.jar"), "x")    // previous version's file
	mustWrite(t, filepath.Join(instance, "mods", "unmanaged.jar"), "x")   // stray
	mustWrite(t, filepath.Join(overrides, "config", "opts.toml"), "data") // not at instance

	r := testReconciler(resolverFor(), &fakeFetcher{})
	in := StatusInput{
		InstancePath:  instance,
		Desired:       mods,
		OverridesPath: overrides,
		PreviousFiles: map[string]string{"stale-v1.jar": "stale"},

		InstanceLoader:        "fabric",
		InstanceLoaderVersion: "0.15.0",
		PackLoader:            "fabric",
		PackLoaderVersion:     "0.16.0",
	}

	status := r.CheckSyncStatus(in)

	if got := status.MissingInInstance; !reflect.DeepEqual(got, []string{"missing"}) {
		t.Errorf("MissingInInstance = %v", got)
	}
	if got := status.ExtraInInstance; !reflect.DeepEqual(got, []string{"unmanaged.jar"}) {
		t.Errorf("ExtraInInstance = %v", got)
	}
	if got := status.DisabledMismatch; !reflect.DeepEqual(got, []string{"wrong-state"}) {
		t.Errorf("DisabledMismatch = %v", got)
	}
	if got := status.UpdatesToApply; !reflect.DeepEqual(got, []string{"stale"}) {
		t.Errorf("UpdatesToApply = %v", got)
	}
	if got := status.ConfigDifferences; !reflect.DeepEqual(got, []string{filepath.Join("config", "opts.toml")}) {
		t.Errorf("ConfigDifferences = %v", got)
	}
	if !status.LoaderMismatch {
		t.Error("loader version difference should flag a mismatch")
	}
	if !status.NeedsSync {
		t.Error("NeedsSync should be set")
	}
	if status.TotalDifferences != 5 {
		t.Errorf("TotalDifferences = %d, want 5", status.TotalDifferences)
	}
}

func TestCheckSyncStatusIdempotent(t *testing.T) {
	instance := t.TempDir()
	mods := []DesiredMod{
		desiredMod("a", "a.jar", 1, 10, false),
		desiredMod("b", "b.jar", 2, 20, true),
	}
	mustWrite(t, filepath.Join(instance, "mods", "a.jar"), "x")

	r := testReconciler(resolverFor(), &fakeFetcher{})
	in := StatusInput{InstancePath: instance, Desired: mods}

	first := r.CheckSyncStatus(in)
	second := r.CheckSyncStatus(in)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("status changed across calls with no mutation:\n%+v\n%+v", first, second)
	}

	// The check must never mutate the instance: the missing mod stays
	// missing and no files appear.
	entries, err := os.ReadDir(filepath.Join(instance, "mods"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.jar" {
		t.Errorf("status check wrote to the instance: %v", entries)
	}
}

func TestCheckSyncStatusCleanInstance(t *testing.T) {
	instance := t.TempDir()
	mods := []DesiredMod{desiredMod("a", "a.jar", 1, 10, false)}
	mustWrite(t, filepath.Join(instance, "mods", "a.jar"), "x")

	r := testReconciler(resolverFor(), &fakeFetcher{})
	status := r.CheckSyncStatus(StatusInput{
		InstancePath: instance,
		Desired:      mods,
		PackLoader:   "fabric", InstanceLoader: "fabric",
	})

	if status.NeedsSync {
		t.Errorf("clean instance should not need sync: %+v", status)
	}
	if status.TotalDifferences != 0 {
		t.Errorf("TotalDifferences = %d, want 0", status.TotalDifferences)
	}
}
