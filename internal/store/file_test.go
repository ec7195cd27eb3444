package store

import (
	"context"
	"encoding/json"
	"testing"

	"mcwatch/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestReadMissingCollectionIsEmpty(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()

	doc, err := st.Read(context.Background(), "current")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %d keys", len(doc))
	}
}

func TestRestartDurability(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestStore(t, dir)
	snapshot := json.RawMessage(`{"online":true,"players":{"online":2,"max":20}}`)
	if err := st.SaveScoped(ctx, "current", "srv-1", snapshot); err != nil {
		t.Fatalf("SaveScoped: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Fresh store over the same backing directory simulates a restart.
	st2 := openTestStore(t, dir)
	defer st2.Close()

	got, err := st2.GetScoped(ctx, "current", "srv-1")
	if err != nil {
		t.Fatalf("GetScoped: %v", err)
	}
	var a, b map[string]any
	if err := json.Unmarshal(snapshot, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(got, &b); err != nil {
		t.Fatalf("reread snapshot not valid JSON: %v", err)
	}
	if len(a) != len(b) || b["online"] != true {
		t.Fatalf("snapshot changed across restart: %s", got)
	}
}

func TestWriteReplacesWholeCollection(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	ctx := context.Background()

	if err := st.Write(ctx, "subscriptions", Document{
		"g1": json.RawMessage(`{"enabled":true}`),
		"g2": json.RawMessage(`{"enabled":false}`),
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Write(ctx, "subscriptions", Document{
		"g1": json.RawMessage(`{"enabled":true}`),
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := st.Read(ctx, "subscriptions")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc) != 1 {
		t.Fatalf("write must replace, not merge: %d keys", len(doc))
	}
	if _, ok := doc["g2"]; ok {
		t.Fatal("g2 should be gone after replace")
	}
}

func TestSaveScopedDeleteOnEmpty(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	ctx := context.Background()

	if err := st.SaveScoped(ctx, "servers", "g1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveScoped: %v", err)
	}
	if err := st.SaveScoped(ctx, "servers", "g1", nil); err != nil {
		t.Fatalf("SaveScoped delete: %v", err)
	}
	raw, err := st.GetScoped(ctx, "servers", "g1")
	if err != nil {
		t.Fatalf("GetScoped: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected deleted key, got %s", raw)
	}
}

func TestTransactionReadModifyWrite(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	ctx := context.Background()

	if err := st.SaveScoped(ctx, "historical", "Steve", json.RawMessage(`{"servers":["a"]}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := st.Transaction(ctx, "historical", func(doc Document) (Document, error) {
		var entry struct {
			Servers []string `json:"servers"`
		}
		if err := Unmarshal(doc["Steve"], &entry); err != nil {
			return nil, err
		}
		entry.Servers = append(entry.Servers, "b")
		raw, err := Marshal(entry)
		if err != nil {
			return nil, err
		}
		doc["Steve"] = raw
		return doc, nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	raw, err := st.GetScoped(ctx, "historical", "Steve")
	if err != nil {
		t.Fatalf("GetScoped: %v", err)
	}
	var entry struct {
		Servers []string `json:"servers"`
	}
	if err := Unmarshal(raw, &entry); err != nil {
		t.Fatal(err)
	}
	if len(entry.Servers) != 2 || entry.Servers[1] != "b" {
		t.Fatalf("unexpected servers: %v", entry.Servers)
	}
}

func TestTransactionErrorLeavesCollectionUntouched(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	ctx := context.Background()

	if err := st.SaveScoped(ctx, "historical", "Steve", json.RawMessage(`{"servers":["a"]}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wantErr := context.Canceled
	err := st.Transaction(ctx, "historical", func(doc Document) (Document, error) {
		delete(doc, "Steve")
		return doc, wantErr
	})
	if err != wantErr {
		t.Fatalf("Transaction err = %v, want %v", err, wantErr)
	}
	raw, err := st.GetScoped(ctx, "historical", "Steve")
	if err != nil || raw == nil {
		t.Fatalf("entry lost after failed transaction: raw=%s err=%v", raw, err)
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "bolt", Path: t.TempDir()}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
