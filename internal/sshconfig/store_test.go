package sshconfig

import (
	"path/filepath"
	"testing"
)

func TestCreateReadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "connections.json"))

	created, err := store.Create(Entry{Host: "example.com", Port: 22, User: "ops"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an assigned ID")
	}

	got, found, err := store.Read(created.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if got.Host != "example.com" {
		t.Errorf("Host = %q, want example.com", got.Host)
	}
}

func TestCreateDuplicateIDRejected(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "connections.json"))

	if _, err := store.Create(Entry{ID: "fixed", Host: "a"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := store.Create(Entry{ID: "fixed", Host: "b"}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestUpdateUnknownRejected(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "connections.json"))
	if err := store.Update(Entry{ID: "ghost"}); err == nil {
		t.Fatal("expected update of unknown id to fail")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "connections.json"))
	created, err := store.Create(Entry{Host: "example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Read(created.ID); found {
		t.Fatal("expected entry to be gone after Delete")
	}
}

func TestListReturnsAllEntries(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "connections.json"))
	if _, err := store.Create(Entry{Host: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(Entry{Host: "b"}); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestPersistsAcrossStoreInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connections.json")
	first := New(path)
	created, err := first.Create(Entry{Host: "example.com"})
	if err != nil {
		t.Fatal(err)
	}

	second := New(path)
	got, found, err := second.Read(created.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !found || got.Host != "example.com" {
		t.Fatal("expected entry written by first Store to be visible via second Store")
	}
}
