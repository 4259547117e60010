package migrate

import (
	"context"
	"errors"
	"testing"
)

type fakeExecutor struct {
	applied map[string]bool
	ran     []string
	failOn  string
}

func (f *fakeExecutor) Init(context.Context) error { return nil }

func (f *fakeExecutor) Applied(context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(f.applied))
	for k, v := range f.applied {
		out[k] = v
	}
	return out, nil
}

func (f *fakeExecutor) Apply(_ context.Context, m *Migration) error {
	if m.Version == f.failOn {
		return errors.New("boom")
	}
	f.applied[m.Version] = true
	f.ran = append(f.ran, m.Version)
	return nil
}

func newGroup() *Group {
	g := NewGroup("test")
	g.MustRegister(
		&Migration{Name: "third", Version: "003"},
		&Migration{Name: "first", Version: "001"},
		&Migration{Name: "second", Version: "002"},
	)
	return g
}

func TestMigrateInOrder(t *testing.T) {
	exec := &fakeExecutor{applied: map[string]bool{"002": true}}

	ran, err := newGroup().Migrate(context.Background(), exec)
	if err != nil {
		t.Fatal(err)
	}
	if len(ran) != 2 || ran[0] != "first" || ran[1] != "third" {
		t.Errorf("got %v, want [first third]", ran)
	}

	ran, err = newGroup().Migrate(context.Background(), exec)
	if err != nil {
		t.Fatal(err)
	}
	if len(ran) != 0 {
		t.Errorf("second run applied %v", ran)
	}
}

func TestMigrateStopsOnFailure(t *testing.T) {
	exec := &fakeExecutor{applied: map[string]bool{}, failOn: "002"}

	ran, err := newGroup().Migrate(context.Background(), exec)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ran) != 1 || ran[0] != "first" {
		t.Errorf("got %v, want [first]", ran)
	}
	if exec.applied["003"] {
		t.Error("migrations after a failure must not run")
	}
}

func TestDuplicateVersionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	g := NewGroup("test")
	g.MustRegister(&Migration{Name: "a", Version: "001"}, &Migration{Name: "b", Version: "001"})
}
