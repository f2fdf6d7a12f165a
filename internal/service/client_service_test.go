package service

import (
	"context"
	"errors"
	"testing"

	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

type clientFixture struct {
	svc     *ClientService
	clients *mockClientRepository
	chunks  *mockChunkRepository
	index   *vector.Index
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()
	f := &clientFixture{
		clients: newMockClientRepository(),
		chunks:  newMockChunkRepository(),
	}
	repos := &repository.Repositories{Client: f.clients}
	f.index = vector.NewIndex(&stubEmbedder{}, f.chunks, discardLogger())
	f.svc = NewClientService(repos, f.index, disabledStorage(t), discardLogger())
	return f
}

func strPtr(s string) *string { return &s }

func TestClientCreate(t *testing.T) {
	f := newClientFixture(t)

	client, err := f.svc.Create(context.Background(), CreateClientInput{
		Name:     "Acme Industrial",
		Email:    "ops@acme.example.com",
		Company:  "Acme Industrial Ltd",
		Industry: "manufacturing",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if client.ID == "" {
		t.Error("expected an ID")
	}
	if !client.IsActive {
		t.Error("expected new client to be active")
	}
	if client.Industry != "manufacturing" {
		t.Errorf("Industry = %q, want %q", client.Industry, "manufacturing")
	}
}

func TestClientCreate_Validation(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateClientInput{Email: "a@example.com"}); err == nil {
		t.Error("expected an error for a missing name")
	}
	if _, err := f.svc.Create(ctx, CreateClientInput{Name: "X", Email: "not-an-email"}); err == nil {
		t.Error("expected an error for a malformed email")
	}
}

func TestClientCreate_DuplicateEmail(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateClientInput{Name: "First", Email: "shared@example.com"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	_, err := f.svc.Create(ctx, CreateClientInput{Name: "Second", Email: "shared@example.com"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Create() error = %v, want ErrEmailTaken", err)
	}
}

func TestClientUpdate(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, _ := f.svc.Create(ctx, CreateClientInput{Name: "Before", Email: "before@example.com"})

	updated, err := f.svc.Update(ctx, client.ID, UpdateClientInput{
		Name:  strPtr("After"),
		Notes: strPtr("renegotiated contract"),
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "After" {
		t.Errorf("Name = %q, want %q", updated.Name, "After")
	}
	if updated.Notes != "renegotiated contract" {
		t.Errorf("Notes = %q, want %q", updated.Notes, "renegotiated contract")
	}
	// Untouched fields survive.
	if updated.Email != "before@example.com" {
		t.Errorf("Email = %q, want unchanged", updated.Email)
	}
}

func TestClientUpdate_EmailConflict(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Create(ctx, CreateClientInput{Name: "First", Email: "first@example.com"})
	second, _ := f.svc.Create(ctx, CreateClientInput{Name: "Second", Email: "second@example.com"})

	_, err := f.svc.Update(ctx, second.ID, UpdateClientInput{Email: strPtr("first@example.com")})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Update() error = %v, want ErrEmailTaken", err)
	}

	// Re-submitting the current email is not a conflict.
	if _, err := f.svc.Update(ctx, second.ID, UpdateClientInput{Email: strPtr("second@example.com")}); err != nil {
		t.Errorf("Update() with own email error: %v", err)
	}
}

func TestClientUpdate_NotFound(t *testing.T) {
	f := newClientFixture(t)

	_, err := f.svc.Update(context.Background(), "absent", UpdateClientInput{Name: strPtr("X")})
	if !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Update() error = %v, want ErrClientNotFound", err)
	}
}

func TestClientDelete(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, _ := f.svc.Create(ctx, CreateClientInput{Name: "Doomed", Email: "doomed@example.com"})
	seedChunks(t, f.index, client.ID, 3)

	if err := f.svc.Delete(ctx, client.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	// Soft delete: the row survives inactive, the namespace does not.
	got, _ := f.svc.Get(ctx, client.ID)
	if got == nil {
		t.Fatal("expected the client row to survive")
	}
	if got.IsActive {
		t.Error("expected the client to be inactive")
	}
	count, _ := f.chunks.CountByClient(ctx, client.ID)
	if count != 0 {
		t.Errorf("chunk count after delete = %d, want 0", count)
	}
}

func TestClientDelete_NotFound(t *testing.T) {
	f := newClientFixture(t)

	err := f.svc.Delete(context.Background(), "absent")
	if !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Delete() error = %v, want ErrClientNotFound", err)
	}
}

func TestClientList_ExcludesInactiveByDefault(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	active, _ := f.svc.Create(ctx, CreateClientInput{Name: "Active", Email: "active@example.com"})
	gone, _ := f.svc.Create(ctx, CreateClientInput{Name: "Gone", Email: "gone@example.com"})
	if err := f.svc.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	visible, err := f.svc.List(ctx, false, 0, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != active.ID {
		t.Errorf("List(false) = %d clients, want only the active one", len(visible))
	}

	all, err := f.svc.List(ctx, true, 0, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(true) = %d clients, want 2", len(all))
	}
}
