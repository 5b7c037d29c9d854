package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type note struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func TestCollection_LoadMissingIsEmpty(t *testing.T) {
	c := NewCollection[note](NewMemoryStore(), "notes", zerolog.Nop())
	items, err := c.Load(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestCollection_CorruptBlobIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Put(ctx, "u1", "notes", []byte(`{not json`))

	c := NewCollection[note](store, "notes", zerolog.Nop())
	items, err := c.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("corrupt blob should not surface an error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty, got %+v", items)
	}

	// Writing over a corrupt blob starts a fresh list.
	if err := c.Append(ctx, "u1", note{ID: 1}); err != nil {
		t.Fatal(err)
	}
	items, _ = c.Load(ctx, "u1")
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %+v", items)
	}
}

func TestCollection_AppendAndSave(t *testing.T) {
	c := NewCollection[note](NewMemoryStore(), "notes", zerolog.Nop())
	ctx := context.Background()

	_ = c.Append(ctx, "u1", note{ID: 1, Text: "a"})
	_ = c.Append(ctx, "u1", note{ID: 2, Text: "b"})
	_ = c.Append(ctx, "u2", note{ID: 3, Text: "c"})

	items, _ := c.Load(ctx, "u1")
	if len(items) != 2 || items[1].Text != "b" {
		t.Errorf("unexpected u1 items: %+v", items)
	}

	if err := c.Save(ctx, "u1", nil); err != nil {
		t.Fatal(err)
	}
	items, _ = c.Load(ctx, "u1")
	if len(items) != 0 {
		t.Errorf("expected empty after Save(nil), got %+v", items)
	}
	other, _ := c.Load(ctx, "u2")
	if len(other) != 1 {
		t.Errorf("users must be isolated, got %+v", other)
	}
}

func TestCollection_UpdateErrorAborts(t *testing.T) {
	c := NewCollection[note](NewMemoryStore(), "notes", zerolog.Nop())
	ctx := context.Background()
	_ = c.Append(ctx, "u1", note{ID: 1})

	boom := errors.New("boom")
	err := c.Update(ctx, "u1", func(items []note) ([]note, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	items, _ := c.Load(ctx, "u1")
	if len(items) != 1 {
		t.Errorf("failed update must not write, got %+v", items)
	}
}

func TestCollection_ConcurrentAppend(t *testing.T) {
	c := NewCollection[note](NewMemoryStore(), "notes", zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Append(ctx, "u1", note{ID: i})
		}(i)
	}
	wg.Wait()

	items, _ := c.Load(ctx, "u1")
	if len(items) != 50 {
		t.Errorf("expected 50 items, got %d", len(items))
	}
}

func TestValue_GetPut(t *testing.T) {
	v := NewValue[map[string]bool](NewMemoryStore(), "flags", zerolog.Nop())
	ctx := context.Background()

	if _, ok, err := v.Get(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected nothing stored, got ok=%v err=%v", ok, err)
	}
	if err := v.Put(ctx, "u1", map[string]bool{"email": true}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := v.Get(ctx, "u1")
	if err != nil || !ok || !got["email"] {
		t.Errorf("expected stored value, got %v ok=%v err=%v", got, ok, err)
	}
	_ = v.Delete(ctx, "u1")
	if _, ok, _ := v.Get(ctx, "u1"); ok {
		t.Error("expected value to be deleted")
	}
}
